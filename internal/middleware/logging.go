package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type logCtxKey struct{}

// maskedHeaders はログに値を出さないヘッダー (小文字)
var maskedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"set-cookie":    true,
	"x-api-key":     true,
}

// maxLoggedBody はデバッグログに載せるボディの上限。インポートは大きくなる。
const maxLoggedBody = 4 << 10

type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   *bytes.Buffer
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.body != nil && rr.body.Len() < maxLoggedBody {
		rr.body.Write(b)
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

// RequestLogger はリクエストごとのロガーをコンテキストに入れ、完了時に1行出力します。
// chi の RequestID ミドルウェアの後に置く。
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger.With(slog.String("req_id", chimw.GetReqID(r.Context())))
			r = r.WithContext(context.WithValue(r.Context(), logCtxKey{}, reqLogger))

			debug := logger.Enabled(r.Context(), slog.LevelDebug)
			var reqBody []byte
			if debug && r.Body != nil {
				reqBody, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			if debug {
				rec.body = new(bytes.Buffer)
			}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= 500:
				level = slog.LevelError
			case rec.status >= 400:
				level = slog.LevelWarn
			}
			reqLogger.LogAttrs(r.Context(), level, "Request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int("bytes_out", rec.bytes),
				slog.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
			)
			if debug {
				reqLogger.Debug("Request detail",
					slog.Any("headers", maskHeaders(r.Header)),
					slog.String("body", truncate(reqBody)),
					slog.String("response", truncate(rec.body.Bytes())),
				)
			}
		})
	}
}

// GetLogger はコンテキストからリクエストスコープのロガーを取得します。
func GetLogger(ctx context.Context) *slog.Logger {
	return GetLoggerOr(ctx, slog.Default())
}

// GetLoggerOr はリクエストスコープのロガーがなければ fallback を返します。
func GetLoggerOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(logCtxKey{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

func maskHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if maskedHeaders[strings.ToLower(key)] {
			out[key] = "[MASKED]"
			continue
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}
