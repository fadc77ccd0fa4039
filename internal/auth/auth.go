package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthHeader 管理端令牌头, 也接受标准的 Authorization: Bearer
const AuthHeader = "CS-Admin-Token"

// Manager 持有管理令牌的 bcrypt 哈希, 明文令牌只在启动时出现一次
type Manager struct {
	hash []byte
}

// NewManager 对管理令牌做哈希。令牌为空时管理接口整体不可用
func NewManager(token string) (*Manager, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Manager{}, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin token: %w", err)
	}

	return &Manager{hash: hash}, nil
}

// Enabled 是否配置了管理令牌
func (m *Manager) Enabled() bool {
	return m != nil && len(m.hash) > 0
}

// Verify 校验候选令牌。未启用时一律拒绝
func (m *Manager) Verify(candidate string) bool {
	if !m.Enabled() || candidate == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(m.hash, []byte(candidate)) == nil
}

// RequireAdmin 管理接口的令牌校验中间件
func RequireAdmin(manager *Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if manager.Verify(requestToken(r)) {
			next.ServeHTTP(w, r)
			return
		}

		WriteUnauthorizedResponse(w)
	})
}

func requestToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(AuthHeader)); token != "" {
		return token
	}

	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

func WriteUnauthorizedResponse(w http.ResponseWriter) {
	if w == nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code": http.StatusUnauthorized,
		"msg":  "无效凭据",
	})
}
