// internal/handlers/entry_handler.go
package handlers

import (
	"log/slog"
	"net/http"

	"go_vocab_drill/internal/middleware"
	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/service"
	"go_vocab_drill/internal/webutil"

	"github.com/go-chi/chi/v5"
)

type EntryHandler struct {
	service service.EntryService
	logger  *slog.Logger
}

func NewEntryHandler(s service.EntryService, logger *slog.Logger) *EntryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntryHandler{service: s, logger: logger}
}

// Routes は /entries 以下と一括処理のルートを登録します。
func (h *EntryHandler) Routes(r chi.Router) {
	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.ListEntries)
		r.Post("/", h.PostEntry)
		r.Delete("/", h.ClearAll)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetEntry)
			r.Patch("/", h.PatchEntry)
			r.Delete("/", h.DeleteEntry)
			r.Post("/increment", h.Increment)
			r.Post("/decrement", h.Decrement)
			r.Post("/cycle", h.Cycle)
			r.Put("/status", h.PutStatus)
			r.Post("/explanation", h.Explain)
		})
	})
	r.Post("/import", h.Import)
	r.Post("/cleanup", h.Cleanup)
}

func (h *EntryHandler) loggerFor(r *http.Request, name string) *slog.Logger {
	return middleware.GetLoggerOr(r.Context(), h.logger).With(slog.String("handler", name))
}

// ListEntries は一覧を返す (新しい順)
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "ListEntries")
	entries := h.service.List(r.Context())
	if entries == nil {
		entries = []model.Entry{}
	}
	logger.Debug("Entries listed", slog.Int("count", len(entries)))
	webutil.RespondWithJSON(w, http.StatusOK, entries, logger)
}

func (h *EntryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "GetEntry")
	id := chi.URLParam(r, "id")
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		logger.Info("Entry not found", slog.String("id", id))
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, entry, logger)
}

// PostEntry は単語を追加する
func (h *EntryHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "PostEntry")

	var req model.PostEntryRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid request body", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	entry, err := h.service.Add(r.Context(), &req)
	if err != nil {
		logger.Warn("Error adding entry", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}
	logger.Info("Entry created", slog.String("id", entry.ID))
	webutil.RespondWithJSON(w, http.StatusCreated, entry, logger)
}

// PatchEntry はフィールドを編集する。指定のないフィールドは変更しない。
func (h *EntryHandler) PatchEntry(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "PatchEntry")

	var req model.PatchEntryRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid request body", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}
	if req.Thai == nil && req.Burmese == nil && req.Category == nil {
		appErr := model.NewAppError("VALIDATION_ERROR", "更新するフィールドが指定されていません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	h.apply(w, r, logger, service.Edit{Thai: req.Thai, Burmese: req.Burmese, Category: req.Category})
}

func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "DeleteEntry")
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	logger.Info("Entry deleted", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntryHandler) Increment(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "Increment")
	step, ok := h.decodeStep(w, r, logger)
	if !ok {
		return
	}
	h.apply(w, r, logger, service.Increment{Step: step})
}

func (h *EntryHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "Decrement")
	step, ok := h.decodeStep(w, r, logger)
	if !ok {
		return
	}
	h.apply(w, r, logger, service.Decrement{Step: step})
}

func (h *EntryHandler) Cycle(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.loggerFor(r, "Cycle"), service.CycleStatus{})
}

// PutStatus はステータスを直接指定する
func (h *EntryHandler) PutStatus(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "PutStatus")
	var req model.PutStatusRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	status, _ := model.ParseStatus(req.Status)
	h.apply(w, r, logger, service.SetStatus{Status: status})
}

// Explain は外部サービスに解説を依頼して追記する
func (h *EntryHandler) Explain(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "Explain")
	id := chi.URLParam(r, "id")
	entry, err := h.service.Explain(r.Context(), id)
	if err != nil {
		logger.Warn("Explanation failed", slog.String("id", id), slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, entry, logger)
}

func (h *EntryHandler) Import(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "Import")
	var req model.ImportRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	result, err := h.service.Import(r.Context(), req.Rows)
	h.respondBulk(w, logger, result, err)
}

func (h *EntryHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "Cleanup")
	result, err := h.service.Cleanup(r.Context())
	h.respondBulk(w, logger, result, err)
}

func (h *EntryHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerFor(r, "ClearAll")
	result, err := h.service.ClearAll(r.Context())
	h.respondBulk(w, logger, result, err)
}

func (h *EntryHandler) decodeStep(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int, bool) {
	var req model.StepRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid step request", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return 0, false
	}
	return req.Step, true
}

func (h *EntryHandler) apply(w http.ResponseWriter, r *http.Request, logger *slog.Logger, m service.Mutation) {
	id := chi.URLParam(r, "id")
	entry, err := h.service.Apply(r.Context(), id, m)
	if err != nil {
		logger.Warn("Mutation rejected", slog.String("id", id), slog.String("mutation", m.Name()), slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, entry, logger)
}

// respondBulk はローカルに反映済みの結果を返す。リモートの失敗チャンクがあれば 502 で詳細を付ける。
func (h *EntryHandler) respondBulk(w http.ResponseWriter, logger *slog.Logger, result *service.BulkResult, err error) {
	if err != nil {
		if result != nil {
			webutil.HandleBulkError(w, logger, err, result)
			return
		}
		webutil.HandleError(w, logger, err)
		return
	}
	logger.Info("Bulk operation completed", slog.Int("total", result.Total), slog.Int("chunks", len(result.Chunks)))
	webutil.RespondWithJSON(w, http.StatusOK, result, logger)
}
