package repository

import (
	"bytes"
	_ "embed"

	"go_vocab_drill/internal/model"
)

// 同梱の初期データ (旧4列フォーマット)
//
//go:embed seed/vocab_seed.csv
var seedCSV []byte

// SeedEntries はミラーが空または破損している場合に使う初期データを返します。
// 呼び出しごとに新しいIDが振られる。
func SeedEntries() ([]model.Entry, error) {
	return DecodeCSV(bytes.NewReader(seedCSV))
}
