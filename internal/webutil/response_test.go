package webutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go_vocab_drill/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"見つからない", fmt.Errorf("store.Update x: %w", model.ErrNotFound), http.StatusNotFound},
		{"検証エラー", &model.ValidationError{Field: "step", Err: model.ErrInvalidStep}, http.StatusBadRequest},
		{"AppError", model.NewAppError("VALIDATION_ERROR", "m", "thai", model.ErrInvalidInput), http.StatusBadRequest},
		{"外部サービス", fmt.Errorf("explain: %w", model.ErrUnavailable), http.StatusServiceUnavailable},
		{"一部チャンク失敗", &model.BatchPartialFailure{Total: 2, Failed: []model.ChunkFailure{{Index: 1, Err: errors.New("x")}}}, http.StatusBadGateway},
		{"その他", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestHandleError_ValidationDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleError(rr, nil, &model.ValidationError{Field: "thai", Err: model.ErrEmptyPrimaryText})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp model.APIErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "thai", resp.Error.Field)
}

func TestDecodeAndValidate_Step(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "正常系", body: `{"step":10}`},
		{name: "正常系: 上限ちょうど", body: `{"step":10000}`},
		{name: "異常系: 上限超過", body: `{"step":9223372036854775807}`, wantErr: true},
		{name: "異常系: 0", body: `{"step":0}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req model.StepRequest
			err := DecodeAndValidate(r, &req)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			var appErr *model.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, "step", appErr.Detail.Field)
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantErr   bool
	}{
		{name: "正常系", body: `{"thai":"สวัสดี","count":2}`},
		{name: "異常系: 必須項目なし", body: `{"count":2}`, wantErr: true, wantField: "thai"},
		{name: "異常系: 未知のフィールド", body: `{"thai":"a","term":"x"}`, wantErr: true},
		{name: "異常系: 不正なステータス", body: `{"thai":"a","status":"done"}`, wantErr: true, wantField: "status"},
		{name: "異常系: 回数が上限超過", body: `{"thai":"a","count":1000000001}`, wantErr: true, wantField: "count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req model.PostEntryRequest
			err := DecodeAndValidate(r, &req)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidInput)
			var appErr *model.AppError
			require.ErrorAs(t, err, &appErr)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, appErr.Detail.Field)
				assert.NotEmpty(t, appErr.Detail.Message)
			}
		})
	}
}
