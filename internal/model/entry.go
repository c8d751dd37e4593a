// internal/model/entry.go
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status は単語の学習ステータス (queue → drill → ready → queue の循環)
type Status string

const (
	StatusQueue Status = "queue"
	StatusDrill Status = "drill"
	StatusReady Status = "ready"
)

// ParseStatus は大文字小文字を区別せずにステータス文字列を解釈します。
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusQueue:
		return StatusQueue, true
	case StatusDrill:
		return StatusDrill, true
	case StatusReady:
		return StatusReady, true
	}
	return "", false
}

// ParseStatusOrDefault は不明・未指定の値を queue として扱います (インポート用)
func ParseStatusOrDefault(s string) Status {
	if st, ok := ParseStatus(s); ok {
		return st
	}
	return StatusQueue
}

// Valid は列挙値のいずれかであるかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusQueue, StatusDrill, StatusReady:
		return true
	}
	return false
}

// Next はサイクル操作での次のステータスを返します。ready の次は queue に戻る。
func (s Status) Next() Status {
	switch s {
	case StatusQueue:
		return StatusDrill
	case StatusDrill:
		return StatusReady
	default:
		return StatusQueue
	}
}

// Rank はマージ時の優先度 (ready > drill > queue)
func (s Status) Rank() int {
	switch s {
	case StatusReady:
		return 2
	case StatusDrill:
		return 1
	default:
		return 0
	}
}

// MaxCount は回数の上限。これを超える加算は上限で止まる。
const MaxCount = 1_000_000_000

// MaxStep は1回の増減で指定できる幅の上限
const MaxStep = 10_000

// Entry は語彙レコード1件を表します。値型として扱い、変更は常に新しい値を返す。
type Entry struct {
	ID          string    `json:"id"`
	Thai        string    `json:"thai"`               // primaryText
	Burmese     *string   `json:"burmese"`            // secondaryText (任意)
	Count       int       `json:"count"`              // ドリル回数の累計
	Status      Status    `json:"status"`             // queue / drill / ready
	Category    *string   `json:"category"`           // 空は「未分類」扱い
	Explanation *string   `json:"ai_explanation"`     // 外部コラボレータが追記する注釈 (素通し)
	UpdatedAt   time.Time `json:"updatedAt,omitzero"` // リモート構成ではサーバー側で付与される
}

// NewEntry は新しいIDを採番してエントリを作成します。
func NewEntry(thai string, burmese, category *string) Entry {
	return Entry{
		ID:       uuid.NewString(),
		Thai:     strings.TrimSpace(thai),
		Burmese:  normalizeOptional(burmese),
		Status:   StatusQueue,
		Category: normalizeOptional(category),
	}
}

// Validate はエントリの不変条件を検証し、正規化済みの値を返します。
func (e Entry) Validate() (Entry, error) {
	if strings.TrimSpace(e.Thai) == "" {
		return Entry{}, &ValidationError{Field: "thai", Err: ErrEmptyPrimaryText}
	}
	if e.Count < 0 {
		return Entry{}, &ValidationError{Field: "count", Err: ErrInvalidCount}
	}
	if e.Status == "" {
		e.Status = StatusQueue
	}
	if !e.Status.Valid() {
		return Entry{}, &ValidationError{Field: "status", Err: fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)}
	}
	if strings.TrimSpace(e.ID) == "" {
		return Entry{}, &ValidationError{Field: "id", Err: ErrMissingID}
	}
	e.Thai = strings.TrimSpace(e.Thai)
	e.Burmese = normalizeOptional(e.Burmese)
	e.Category = normalizeOptional(e.Category)
	return e, nil
}

// WithCount は回数を差し替えた値を返します。0未満は0、MaxCount 超は MaxCount に丸める。
func (e Entry) WithCount(count int) Entry {
	e.Count = max(0, min(count, MaxCount))
	return e
}

// WithStatus はステータスを差し替えた値を返します。
func (e Entry) WithStatus(s Status) Entry {
	e.Status = s
	return e
}

// CategoryLabel は未分類を空文字として返します。
func (e Entry) CategoryLabel() string {
	if e.Category == nil {
		return ""
	}
	return *e.Category
}

// SecondaryText は訳語を空文字込みで返します。
func (e Entry) SecondaryText() string {
	if e.Burmese == nil {
		return ""
	}
	return *e.Burmese
}

// SameContent は updatedAt を除く内容が一致するかを返します。
func (e Entry) SameContent(o Entry) bool {
	return e.ID == o.ID &&
		e.Thai == o.Thai &&
		e.Count == o.Count &&
		e.Status == o.Status &&
		optEqual(e.Burmese, o.Burmese) &&
		optEqual(e.Category, o.Category) &&
		optEqual(e.Explanation, o.Explanation)
}

// StringPtr は空白のみの文字列を nil として扱うポインタを返します。
func StringPtr(s string) *string {
	return normalizeOptional(&s)
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func optEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CloneEntries はスナップショット用にスライスをコピーします。
func CloneEntries(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
