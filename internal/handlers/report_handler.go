// internal/handlers/report_handler.go
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"go_vocab_drill/internal/middleware"
	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/service"
	"go_vocab_drill/internal/webutil"
)

const dateLayout = "2006-01-02"

// ReportHandler は進捗と同期状態を返す読み取り専用のハンドラ
type ReportHandler struct {
	service service.EntryService
	logger  *slog.Logger
	now     func() time.Time
}

func NewReportHandler(s service.EntryService, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{service: s, logger: logger, now: time.Now}
}

// GetProgress は ?today=YYYY-MM-DD 時点の進捗を返す。省略時は現在日付。
func (h *ReportHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerOr(r.Context(), h.logger).With(slog.String("handler", "GetProgress"))

	today := h.now()
	if q := r.URL.Query().Get("today"); q != "" {
		parsed, err := time.Parse(dateLayout, q)
		if err != nil {
			logger.Warn("Invalid today parameter", slog.String("today", q))
			appErr := model.NewAppError("INVALID_QUERY_PARAM", "todayはYYYY-MM-DD形式で指定してください。", "today", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		today = parsed
	}
	webutil.RespondWithJSON(w, http.StatusOK, h.service.Progress(r.Context(), today), logger)
}

// GetStatus はリモート同期とローカル永続化の状態を返す
func (h *ReportHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLoggerOr(r.Context(), h.logger)
	webutil.RespondWithJSON(w, http.StatusOK, h.service.Status(r.Context()), logger)
}

// Health はプロセスが応答できることだけを返す。同期状態は /status で見る。
func (h *ReportHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
