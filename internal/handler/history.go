package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"clashsub/internal/storage"
)

type historyItem struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Strategy   string    `json:"strategy"`
	ProxyCount int       `json:"proxy_count"`
	GroupCount int       `json:"group_count"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

// NewHistoryHandler 返回最近的转换历史, limit 参数控制条数
func NewHistoryHandler(repo *storage.Repository) http.Handler {
	if repo == nil {
		panic("history handler requires repository")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("only GET is supported"))
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
				return
			}
			limit = parsed
		}

		records, err := repo.RecentConversions(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		items := make([]historyItem, 0, len(records))
		for _, record := range records {
			items = append(items, historyItem{
				ID:         record.ID,
				URL:        record.URL,
				Strategy:   record.Strategy,
				ProxyCount: record.ProxyCount,
				GroupCount: record.GroupCount,
				DurationMS: record.DurationMS,
				CreatedAt:  record.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(historyResponse{Items: items})
	})
}
