// internal/webutil/response.go
package webutil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go_vocab_drill/internal/model"
)

// BulkErrorResponse は一括処理で一部チャンクが失敗したときのレスポンス
type BulkErrorResponse struct {
	Error  model.ErrorDetail `json:"error"`
	Result any               `json:"result,omitempty"`
}

// HandleError はエラーを解釈し、適切なJSONエラーレスポンスを返します。
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	statusCode := MapErrorToStatusCode(err)
	RespondWithJSON(w, statusCode, model.APIErrorResponse{Error: errorDetail(logger, err)}, logger)
}

// HandleBulkError は一括処理の結果 (成功したチャンクを含む) を付けてエラーを返します。
func HandleBulkError(w http.ResponseWriter, logger *slog.Logger, err error, result any) {
	if logger == nil {
		logger = slog.Default()
	}
	statusCode := MapErrorToStatusCode(err)
	RespondWithJSON(w, statusCode, BulkErrorResponse{Error: errorDetail(logger, err), Result: result}, logger)
}

func errorDetail(logger *slog.Logger, err error) model.ErrorDetail {
	var appErr *model.AppError
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	var validationErr *model.ValidationError
	if errors.As(err, &validationErr) {
		return model.ErrorDetail{Code: "VALIDATION_ERROR", Message: validationErr.Err.Error(), Field: validationErr.Field}
	}
	var partial *model.BatchPartialFailure
	if errors.As(err, &partial) {
		return model.ErrorDetail{Code: "REMOTE_PARTIAL_FAILURE", Message: partial.Error()}
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return model.ErrorDetail{Code: "NOT_FOUND", Message: "指定された単語が見つかりません。"}
	case errors.Is(err, model.ErrUnavailable):
		return model.ErrorDetail{Code: "SERVICE_UNAVAILABLE", Message: "外部サービスを利用できません。"}
	case errors.Is(err, model.ErrInvalidInput):
		return model.ErrorDetail{Code: "INVALID_INPUT", Message: "入力内容が正しくありません。"}
	}
	logger.Error("Unhandled error", slog.Any("error", err))
	return model.ErrorDetail{Code: "INTERNAL_SERVER_ERROR", Message: "サーバー内部でエラーが発生しました。"}
}

// MapErrorToStatusCode はアプリケーションエラーをHTTPステータスコードにマッピングします
func MapErrorToStatusCode(err error) int {
	var partial *model.BatchPartialFailure
	switch {
	case errors.As(err, &partial):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithJSON はJSONレスポンスを返します
func RespondWithJSON(w http.ResponseWriter, code int, payload any, logger *slog.Logger) {
	response, err := json.Marshal(payload)
	if err != nil {
		if logger != nil {
			logger.Error("Error marshaling JSON response", slog.Any("error", err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_SERVER_ERROR","message":"レスポンス生成中にエラーが発生しました。"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
