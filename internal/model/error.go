// internal/model/error.go
package model

import (
	"errors"
	"fmt"
	"strings"
)

// アプリケーション固有のエラー
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
	ErrConflict       = errors.New("resource conflict")
	ErrUnavailable    = errors.New("service unavailable") // リモート未設定など
)

// エントリの検証エラー
var (
	ErrEmptyPrimaryText = errors.New("primary text is empty")
	ErrInvalidCount     = errors.New("count must not be negative")
	ErrInvalidStatus    = errors.New("unknown status")
	ErrInvalidStep      = errors.New("step must be positive")
	ErrMissingID        = errors.New("id is empty")
)

// ValidationError は境界で拒否される入力エラー。ストアには入らない。
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Is により errors.Is(err, ErrInvalidInput) でも判定できる
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// PersistenceError はローカル永続化の失敗。非致命的で、メモリ上の状態は巻き戻さない。
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// SyncError はリモートのリスナー/書き込みの失敗。同期ステータスとしてのみ観測される。
type SyncError struct {
	Op  string
	ID  string
	Err error
}

func (e *SyncError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("sync %s (%s): %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
}
func (e *SyncError) Unwrap() error { return e.Err }

// ChunkFailure は一括処理で失敗したチャンク1件
type ChunkFailure struct {
	Index int      `json:"index"`
	IDs   []string `json:"ids"`
	Err   error    `json:"-"`
}

// BatchPartialFailure は一括インポート/クリアで一部チャンクが失敗したことを表します。
// 呼び出し側は Failed のチャンクだけを再試行できる。
type BatchPartialFailure struct {
	Total  int
	Failed []ChunkFailure
}

func (e *BatchPartialFailure) Error() string {
	idx := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		idx = append(idx, fmt.Sprintf("%d(%v)", f.Index, f.Err))
	}
	return fmt.Sprintf("%d of %d chunks failed: %s", len(e.Failed), e.Total, strings.Join(idx, ", "))
}

// Unwrap は各チャンクのエラーを返します。
func (e *BatchPartialFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Failed {
		errs = append(errs, f.Err)
	}
	return errs
}

// ErrorDetail はAPIエラーレスポンスの中身
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// APIErrorResponse はAPIエラーレスポンスの構造体
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// AppError はクライアント向けの詳細を持つエラー
type AppError struct {
	Detail ErrorDetail
	Err    error
}

func NewAppError(code, message, field string, err error) *AppError {
	return &AppError{
		Detail: ErrorDetail{Code: code, Message: message, Field: field},
		Err:    err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Detail.Code, e.Detail.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Detail.Code, e.Detail.Message)
}

func (e *AppError) Unwrap() error { return e.Err }
