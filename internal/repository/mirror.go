//go:generate mockery --name Mirror --output ./mocks --outpkg mocks --case=underscore
package repository

import (
	"context"
	"errors"

	"go_vocab_drill/internal/model"
)

// ErrCorruptMirror はミラーの内容が読めない場合のエラー
var ErrCorruptMirror = errors.New("local mirror is corrupt")

// Mirror はメモリ上のコレクションの永続化先 (ファイル、テーブルなど)。
// Save は全件を丸ごと書き込み、成功か失敗のどちらかになる。
type Mirror interface {
	Load(ctx context.Context) ([]model.Entry, error)
	Save(ctx context.Context, entries []model.Entry) error
}
