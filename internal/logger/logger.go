package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger 封装slog
type Logger struct {
	*slog.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init 初始化全局logger
func Init() *Logger {
	once.Do(func() {
		handler := newTextHandler(os.Stdout, slog.LevelInfo)
		defaultLogger = &Logger{
			Logger: slog.New(handler),
		}
	})
	return defaultLogger
}

// GetLogger 获取全局logger实例
func GetLogger() *Logger {
	if defaultLogger == nil {
		return Init()
	}
	return defaultLogger
}

// newTextHandler 创建自定义文本handler（中文友好的格式）
func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// 自定义时间格式
			if a.Key == slog.TimeKey {
				t := a.Value.Time()
				return slog.String("time", t.Format("2006-01-02 15:04:05"))
			}
			// 自定义级别显示
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				levelStr := ""
				switch level {
				case slog.LevelDebug:
					levelStr = "DEBUG"
				case slog.LevelInfo:
					levelStr = "INFO "
				case slog.LevelWarn:
					levelStr = "WARN "
				case slog.LevelError:
					levelStr = "ERROR"
				}
				return slog.String("level", levelStr)
			}
			return a
		},
	})
}

// sanitizeArgs 脱敏敏感信息
func sanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	result := make([]any, len(args))
	copy(result, args)

	for i := 0; i < len(result)-1; i += 2 {
		if keyStr, ok := result[i].(string); ok {
			keyLower := strings.ToLower(keyStr)
			if strings.Contains(keyLower, "password") ||
				strings.Contains(keyLower, "token") ||
				strings.Contains(keyLower, "secret") {
				result[i+1] = "***"
			}
		}
	}

	return result
}

// 全局便捷方法
func Info(msg string, args ...any) {
	GetLogger().Info(msg, sanitizeArgs(args)...)
}

func Warn(msg string, args ...any) {
	GetLogger().Warn(msg, sanitizeArgs(args)...)
}

func Error(msg string, args ...any) {
	GetLogger().Error(msg, sanitizeArgs(args)...)
}

func Debug(msg string, args ...any) {
	GetLogger().Debug(msg, sanitizeArgs(args)...)
}
