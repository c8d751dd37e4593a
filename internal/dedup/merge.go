// Package dedup は同じ論理的な単語を表すエントリを1件にまとめます。
package dedup

import (
	"strings"

	"go_vocab_drill/internal/model"
)

// MergeKey は lowercase(trim(thai)) + "|" + lowercase(trim(category)) を返します。
func MergeKey(e model.Entry) string {
	return strings.ToLower(strings.TrimSpace(e.Thai)) + "|" + strings.ToLower(strings.TrimSpace(e.CategoryLabel()))
}

// Merge は重複グループごとに出現順でペアごとにマージし、キーごとに1件を返します。
// 出力は各キーの最初の出現順。何度実行しても結果は変わらない。
func Merge(entries []model.Entry) []model.Entry {
	out := make([]model.Entry, 0, len(entries))
	pos := make(map[string]int, len(entries))
	for _, e := range entries {
		key := MergeKey(e)
		if i, ok := pos[key]; ok {
			out[i] = mergePair(out[i], e)
			continue
		}
		pos[key] = len(out)
		out = append(out, e)
	}
	return out
}

// Groups は重複しているキーとそのID一覧を返します (2件以上のグループのみ)。
func Groups(entries []model.Entry) map[string][]string {
	all := make(map[string][]string)
	for _, e := range entries {
		k := MergeKey(e)
		all[k] = append(all[k], e.ID)
	}
	dups := make(map[string][]string)
	for k, ids := range all {
		if len(ids) > 1 {
			dups[k] = ids
		}
	}
	return dups
}

// mergePair は先に出現した a を生存側として b を吸収します。
func mergePair(a, b model.Entry) model.Entry {
	merged := a
	// 回数は累計なので合算せず大きい方
	if b.Count > merged.Count {
		merged.Count = b.Count
	}
	if b.Status.Rank() > merged.Status.Rank() {
		merged.Status = b.Status
	}
	if isBlank(merged.Burmese) && !isBlank(b.Burmese) {
		merged.Burmese = b.Burmese
	}
	if isBlank(merged.Explanation) && !isBlank(b.Explanation) {
		merged.Explanation = b.Explanation
	}
	if b.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = b.UpdatedAt
	}
	return merged
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
