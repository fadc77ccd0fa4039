package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const pragmaJournalMode = "PRAGMA journal_mode=WAL;"

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Conversion 一次转换的历史记录
type Conversion struct {
	ID         string
	URL        string
	Strategy   string
	ProxyCount int
	GroupCount int
	DurationMS int64
	CreatedAt  time.Time
}

// Repository 基于 SQLite 的订阅缓存与转换历史存储
type Repository struct {
	db *sql.DB
}

// NewRepository 按路径或 DSN 初始化存储, 必要时创建数据目录
func NewRepository(path string) (*Repository, error) {
	if path == "" {
		return nil, errors.New("repository path is empty")
	}

	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(pragmaJournalMode); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

// Close 释放底层数据库资源
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate() error {
	const cacheSchema = `
CREATE TABLE IF NOT EXISTS subscription_cache (
    url_hash TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    payload BLOB NOT NULL,
    fetched_at TIMESTAMP NOT NULL
);
`

	if _, err := r.db.Exec(cacheSchema); err != nil {
		return fmt.Errorf("migrate subscription_cache: %w", err)
	}

	const conversionSchema = `
CREATE TABLE IF NOT EXISTS conversions (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    strategy TEXT NOT NULL,
    proxy_count INTEGER NOT NULL,
    group_count INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at);
`

	if _, err := r.db.Exec(conversionSchema); err != nil {
		return fmt.Errorf("migrate conversions: %w", err)
	}

	return nil
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// CachedPayload 返回未过期的缓存订阅原文, 未命中或已过期返回 ok=false
func (r *Repository) CachedPayload(ctx context.Context, rawURL string, ttl time.Duration) ([]byte, bool, error) {
	var (
		payload   []byte
		fetchedAt time.Time
	)

	row := r.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM subscription_cache WHERE url_hash = ?`, cacheKey(rawURL))
	if err := row.Scan(&payload, &fetchedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query subscription cache: %w", err)
	}

	if ttl > 0 && time.Since(fetchedAt) > ttl {
		return nil, false, nil
	}

	return payload, true, nil
}

// StorePayload 写入或覆盖某个订阅地址的缓存
func (r *Repository) StorePayload(ctx context.Context, rawURL string, payload []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO subscription_cache (url_hash, url, payload, fetched_at) VALUES (?, ?, ?, ?)`,
		cacheKey(rawURL), rawURL, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store subscription cache: %w", err)
	}
	return nil
}

// PruneCache 删除超出 TTL 的缓存条目, 返回删除数量
func (r *Repository) PruneCache(ctx context.Context, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-ttl)
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subscription_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune subscription cache: %w", err)
	}

	return result.RowsAffected()
}

// RecordConversion 追加一条转换历史, ID 为空时自动生成
func (r *Repository) RecordConversion(ctx context.Context, conv Conversion) (Conversion, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversions (id, url, strategy, proxy_count, group_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.URL, conv.Strategy, conv.ProxyCount, conv.GroupCount, conv.DurationMS, conv.CreatedAt)
	if err != nil {
		return Conversion{}, fmt.Errorf("record conversion: %w", err)
	}

	return conv, nil
}

// RecentConversions 按时间倒序返回最近的转换历史
func (r *Repository) RecentConversions(ctx context.Context, limit int) ([]Conversion, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, url, strategy, proxy_count, group_count, duration_ms, created_at
		 FROM conversions ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversions: %w", err)
	}
	defer rows.Close()

	var records []Conversion
	for rows.Next() {
		var conv Conversion
		if err := rows.Scan(&conv.ID, &conv.URL, &conv.Strategy, &conv.ProxyCount, &conv.GroupCount, &conv.DurationMS, &conv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversion: %w", err)
		}
		records = append(records, conv)
	}

	return records, rows.Err()
}
