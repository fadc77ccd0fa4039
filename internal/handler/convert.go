package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"clashsub/internal/converter"
	"clashsub/internal/fetch"
	"clashsub/internal/logger"
	"clashsub/internal/storage"
)

// Fetcher 下载上游订阅原文
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// NewConvertHandler 处理 GET /sub 的订阅转换请求
// 查询参数:
//   - url: 上游订阅地址 (必填)
//   - strategy: registry (默认) 或 auto
//   - all_groups: 为 1 时输出注册表全部地区组 (含空组)
//   - nocache: 为 1 时跳过缓存强制回源
func NewConvertHandler(fetcher Fetcher, repo *storage.Repository, hub *EventHub, cacheTTL time.Duration) http.Handler {
	if fetcher == nil {
		panic("convert handler requires fetcher")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, errors.New("only GET is supported"))
			return
		}

		query := r.URL.Query()
		rawURL := query.Get("url")
		if rawURL == "" {
			writeError(w, http.StatusBadRequest, errors.New("url query parameter is required"))
			return
		}

		strategy := query.Get("strategy")
		if strategy == "" {
			strategy = converter.StrategyRegistry
		}
		if strategy != converter.StrategyRegistry && strategy != converter.StrategyAuto {
			writeError(w, http.StatusBadRequest, errors.New("strategy must be registry or auto"))
			return
		}

		includeEmpty := isTruthy(query.Get("all_groups"))
		noCache := isTruthy(query.Get("nocache"))

		payload, cached, err := lookupPayload(r.Context(), repo, rawURL, cacheTTL, noCache)
		if err != nil {
			logger.Warn("读取订阅缓存失败", "url", rawURL, "error", err)
		}

		if payload == nil {
			payload, err = fetcher(r.Context(), rawURL)
			if err != nil {
				if errors.Is(err, fetch.ErrInvalidURL) {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				logger.Warn("下载订阅失败", "url", rawURL, "error", err)
				writeError(w, http.StatusBadGateway, err)
				return
			}

			if repo != nil {
				if err := repo.StorePayload(r.Context(), rawURL, payload); err != nil {
					logger.Warn("写入订阅缓存失败", "url", rawURL, "error", err)
				}
			}
		}

		start := time.Now()
		result, err := converter.Convert(payload, converter.Options{
			Strategy:            strategy,
			IncludeEmptyBuckets: includeEmpty,
		})
		if err != nil {
			if errors.Is(err, converter.ErrParse) {
				logger.Warn("订阅内容无法解析", "url", rawURL, "error", err)
				writeError(w, http.StatusBadGateway, err)
				return
			}
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		duration := time.Since(start)

		recordConversion(r.Context(), repo, hub, storage.Conversion{
			URL:        rawURL,
			Strategy:   strategy,
			ProxyCount: result.ProxyCount,
			GroupCount: result.GroupCount,
			DurationMS: duration.Milliseconds(),
		})

		logger.Info("订阅转换完成",
			"url", rawURL,
			"strategy", strategy,
			"proxies", result.ProxyCount,
			"groups", result.GroupCount,
			"cached", cached,
			"duration", duration)

		w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="clash.yaml"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Output)
	})
}

func isTruthy(value string) bool {
	return value == "1" || value == "true"
}

func lookupPayload(ctx context.Context, repo *storage.Repository, rawURL string, ttl time.Duration, noCache bool) ([]byte, bool, error) {
	if repo == nil || noCache {
		return nil, false, nil
	}
	return repo.CachedPayload(ctx, rawURL, ttl)
}

func recordConversion(ctx context.Context, repo *storage.Repository, hub *EventHub, conv storage.Conversion) {
	if repo != nil {
		recorded, err := repo.RecordConversion(ctx, conv)
		if err != nil {
			logger.Warn("写入转换历史失败", "url", conv.URL, "error", err)
		} else {
			conv = recorded
		}
	}

	if hub != nil {
		hub.Publish(Event{
			Type:       "conversion",
			URL:        conv.URL,
			Strategy:   conv.Strategy,
			ProxyCount: conv.ProxyCount,
			GroupCount: conv.GroupCount,
			DurationMS: conv.DurationMS,
			At:         conv.CreatedAt,
		})
	}
}
