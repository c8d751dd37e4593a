// Package remote はアカウント単位のリモートコレクションとの同期を扱います。
package remote

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"go_vocab_drill/internal/model"
)

// MaxBatchOps は1回のアトミックなバッチに含められる操作数の上限
const MaxBatchOps = 450

// Snapshot はリモートコレクションの全件 (updatedAt の降順)
type Snapshot struct {
	Entries   []model.Entry
	FromCache bool      // サーバー未確認のデータ
	ReadAt    time.Time // サーバー時刻。不明ならゼロ値
}

type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

func (k OpKind) String() string {
	if k == OpDelete {
		return "delete"
	}
	return "set"
}

// Op はリモートへの書き込み1件
type Op struct {
	Kind  OpKind
	ID    string
	Entry model.Entry // OpSet のときのみ
}

func SetOp(e model.Entry) Op { return Op{Kind: OpSet, ID: e.ID, Entry: e} }
func DeleteOp(id string) Op  { return Op{Kind: OpDelete, ID: id} }

// Backend はリモートストアの実装 (firestore / redis / memory)
type Backend interface {
	// Watch はスナップショットを deliver に渡し続けます。ctx が終わるまでブロックし、
	// キャンセルなら nil、購読が継続できなくなればエラーを返す。
	Watch(ctx context.Context, account string, deliver func(Snapshot)) error
	// Set はドキュメント全体を書き込み、サーバーが付与した更新時刻を返します。
	Set(ctx context.Context, account string, e model.Entry) (time.Time, error)
	Delete(ctx context.Context, account string, id string) (time.Time, error)
	// Commit は最大 MaxBatchOps 件をアトミックに適用します。
	Commit(ctx context.Context, account string, ops []Op) error
	ListIDs(ctx context.Context, account string) ([]string, error)
	Close() error
}

// Document はリモートに保存される1件の形 (ID はドキュメントキー)
type Document struct {
	Thai        string    `firestore:"thai" json:"thai"`
	Burmese     *string   `firestore:"burmese" json:"burmese"`
	Count       int       `firestore:"count" json:"count"`
	Status      string    `firestore:"status" json:"status"`
	Category    *string   `firestore:"category" json:"category"`
	Explanation *string   `firestore:"ai_explanation" json:"ai_explanation"`
	UpdatedAt   time.Time `firestore:"updatedAt" json:"updatedAt"`
}

func documentFromEntry(e model.Entry) Document {
	return Document{
		Thai:        e.Thai,
		Burmese:     e.Burmese,
		Count:       e.Count,
		Status:      string(e.Status),
		Category:    e.Category,
		Explanation: e.Explanation,
		UpdatedAt:   e.UpdatedAt,
	}
}

// toEntry は読み込み時に寛容に正規化する。主テキストが空なら false。
func (d Document) toEntry(id string) (model.Entry, bool) {
	if strings.TrimSpace(d.Thai) == "" || id == "" {
		return model.Entry{}, false
	}
	e := model.Entry{
		ID:          id,
		Thai:        d.Thai,
		Burmese:     d.Burmese,
		Status:      model.ParseStatusOrDefault(d.Status),
		Category:    d.Category,
		Explanation: d.Explanation,
		UpdatedAt:   d.UpdatedAt,
	}.WithCount(d.Count)
	valid, err := e.Validate()
	if err != nil {
		return model.Entry{}, false
	}
	return valid, true
}

// sortByUpdatedDesc はリスナーの並び順 (新しい順、同時刻はID順) に揃える
func sortByUpdatedDesc(entries []model.Entry) {
	slices.SortStableFunc(entries, func(a, b model.Entry) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func chunkOps(ops []Op, size int) [][]Op {
	if size <= 0 || size > MaxBatchOps {
		size = MaxBatchOps
	}
	var chunks [][]Op
	for start := 0; start < len(ops); start += size {
		end := min(start+size, len(ops))
		chunks = append(chunks, ops[start:end])
	}
	return chunks
}
