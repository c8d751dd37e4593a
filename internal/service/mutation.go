// internal/service/mutation.go
package service

import (
	"strings"

	"go_vocab_drill/internal/model"
)

// Mutation はエントリ1件に対する変更。Apply は新しい値を返し、元の値は変更しない。
type Mutation interface {
	Apply(e model.Entry) (model.Entry, error)
	Name() string
}

// Increment は回数を Step だけ増やす。model.MaxCount で頭打ちになる。
type Increment struct{ Step int }

func (m Increment) Apply(e model.Entry) (model.Entry, error) {
	if m.Step <= 0 {
		return e, &model.ValidationError{Field: "step", Err: model.ErrInvalidStep}
	}
	// 加算であふれないよう上限までの残りと比べる
	if m.Step > model.MaxCount-e.Count {
		return e.WithCount(model.MaxCount), nil
	}
	return e.WithCount(e.Count + m.Step), nil
}

func (Increment) Name() string { return "increment" }

// Decrement は回数を Step だけ減らす。0未満にはならない。
type Decrement struct{ Step int }

func (m Decrement) Apply(e model.Entry) (model.Entry, error) {
	if m.Step <= 0 {
		return e, &model.ValidationError{Field: "step", Err: model.ErrInvalidStep}
	}
	return e.WithCount(e.Count - m.Step), nil
}

func (Decrement) Name() string { return "decrement" }

// CycleStatus は queue → drill → ready → queue と進める
type CycleStatus struct{}

func (CycleStatus) Apply(e model.Entry) (model.Entry, error) {
	return e.WithStatus(e.Status.Next()), nil
}

func (CycleStatus) Name() string { return "cycle" }

// SetStatus は任意のステータスへ直接変更する
type SetStatus struct{ Status model.Status }

func (m SetStatus) Apply(e model.Entry) (model.Entry, error) {
	if !m.Status.Valid() {
		return e, &model.ValidationError{Field: "status", Err: model.ErrInvalidStatus}
	}
	return e.WithStatus(m.Status), nil
}

func (SetStatus) Name() string { return "set_status" }

// Edit はフィールドを編集する。nil は変更なし、空文字は任意項目のクリア。
type Edit struct {
	Thai     *string
	Burmese  *string
	Category *string
}

func (m Edit) Apply(e model.Entry) (model.Entry, error) {
	if m.Thai != nil {
		if strings.TrimSpace(*m.Thai) == "" {
			return e, &model.ValidationError{Field: "thai", Err: model.ErrEmptyPrimaryText}
		}
		e.Thai = *m.Thai
	}
	if m.Burmese != nil {
		e.Burmese = model.StringPtr(*m.Burmese)
	}
	if m.Category != nil {
		e.Category = model.StringPtr(*m.Category)
	}
	return e, nil
}

func (Edit) Name() string { return "edit" }

// AttachExplanation は解説文を末尾に追記する
type AttachExplanation struct{ Text string }

func (m AttachExplanation) Apply(e model.Entry) (model.Entry, error) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return e, &model.ValidationError{Field: "ai_explanation", Err: model.ErrInvalidInput}
	}
	if e.Explanation != nil && *e.Explanation != "" {
		text = *e.Explanation + "\n\n" + text
	}
	e.Explanation = &text
	return e, nil
}

func (AttachExplanation) Name() string { return "explanation" }
