package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go_vocab_drill/internal/model"

	"github.com/google/uuid"
)

// 現行フォーマットのヘッダー。ai_explanation は末尾の追加列で、読み込み時は任意。
var currentHeader = []string{"id", "thai", "burmese", "count", "status", "category", "ai_explanation"}

// 旧フォーマット (ヘッダーなし4列: thai, burmese, count, status)
var legacyColumns = map[string]int{"thai": 0, "burmese": 1, "count": 2, "status": 3}

// ヘッダー名の別名
var headerAliases = map[string]string{
	"id":             "id",
	"thai":           "thai",
	"primarytext":    "thai",
	"burmese":        "burmese",
	"secondarytext":  "burmese",
	"count":          "count",
	"status":         "status",
	"category":       "category",
	"ai_explanation": "ai_explanation",
	"explanation":    "ai_explanation",
}

// EncodeCSV はエントリを現行フォーマットで書き出します。
func EncodeCSV(w io.Writer, entries []model.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(currentHeader); err != nil {
		return fmt.Errorf("EncodeCSV header: %w", err)
	}
	for _, e := range entries {
		rec := []string{
			e.ID,
			e.Thai,
			e.SecondaryText(),
			strconv.Itoa(e.Count),
			string(e.Status),
			e.CategoryLabel(),
			deref(e.Explanation),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("EncodeCSV row %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeCSV はヘッダー付きの現行/旧フォーマット、およびヘッダーなし4列の旧フォーマットを読み込みます。
// 欠けているフィールドはここで明示的にデフォルト値を補う:
// id なし → 新規UUID, category なし → 未分類, status 不明 → queue, count 不正 → 0。
func DecodeCSV(r io.Reader) ([]model.Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptMirror, err)
	}
	if len(records) == 0 {
		return []model.Entry{}, nil
	}

	cols, isHeader := parseHeader(records[0])
	rows := records
	switch {
	case isHeader:
		rows = records[1:]
	case len(records[0]) == len(legacyColumns):
		cols = legacyColumns
	default:
		return nil, fmt.Errorf("%w: unrecognized header %q", ErrCorruptMirror, strings.Join(records[0], ","))
	}

	entries := make([]model.Entry, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, rec := range rows {
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		thai := get("thai")
		if thai == "" {
			continue
		}
		id := get("id")
		if id == "" || seen[id] {
			id = uuid.NewString()
		}
		seen[id] = true

		count, err := strconv.Atoi(get("count"))
		if err != nil {
			count = 0
		}
		e := model.Entry{
			ID:          id,
			Thai:        thai,
			Burmese:     model.StringPtr(get("burmese")),
			Status:      model.ParseStatusOrDefault(get("status")),
			Category:    model.StringPtr(get("category")),
			Explanation: model.StringPtr(get("ai_explanation")),
		}.WithCount(count)
		entries = append(entries, e)
	}
	return entries, nil
}

func parseHeader(rec []string) (map[string]int, bool) {
	cols := make(map[string]int, len(rec))
	for i, h := range rec {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canonical, ok := headerAliases[name]; ok {
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	_, hasThai := cols["thai"]
	return cols, hasThai
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
