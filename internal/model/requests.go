// internal/model/requests.go
package model

import "strings"

// ImportRow はインポートバッチの1行
type ImportRow struct {
	Thai     string  `json:"thai"`
	Burmese  *string `json:"burmese,omitempty"`
	Count    *int    `json:"count,omitempty" validate:"omitempty,min=0,max=1000000000"`
	Category *string `json:"category,omitempty"`
	Status   string  `json:"status,omitempty"`
}

// ToEntry は行を新しいIDのエントリへ変換します。主テキストが空の行は ok=false (破棄)。
func (r ImportRow) ToEntry() (Entry, bool) {
	if strings.TrimSpace(r.Thai) == "" {
		return Entry{}, false
	}
	e := NewEntry(r.Thai, r.Burmese, r.Category)
	if r.Count != nil {
		e = e.WithCount(*r.Count)
	}
	e.Status = ParseStatusOrDefault(r.Status)
	return e, true
}

// PostEntryRequest は単語追加リクエストDTO
type PostEntryRequest struct {
	Thai     string  `json:"thai" validate:"required"`
	Burmese  *string `json:"burmese,omitempty"`
	Category *string `json:"category,omitempty"`
	Count    int     `json:"count" validate:"min=0,max=1000000000"`
	Status   string  `json:"status,omitempty" validate:"omitempty,oneof=queue drill ready QUEUE DRILL READY"`
}

// PatchEntryRequest はフィールド編集リクエストDTO (nil は変更なし)
type PatchEntryRequest struct {
	Thai     *string `json:"thai,omitempty" validate:"omitempty,min=1"`
	Burmese  *string `json:"burmese,omitempty"`
	Category *string `json:"category,omitempty"`
}

// StepRequest は増減リクエストDTO (上限は MaxStep)
type StepRequest struct {
	Step int `json:"step" validate:"required,min=1,max=10000"`
}

// PutStatusRequest はステータス直接指定リクエストDTO
type PutStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=queue drill ready"`
}

// ImportRequest は一括インポートのリクエストDTO
type ImportRequest struct {
	Rows []ImportRow `json:"rows" validate:"required,dive"`
}
