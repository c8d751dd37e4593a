// internal/service/entry_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go_vocab_drill/internal/dedup"
	"go_vocab_drill/internal/explain"
	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/persist"
	"go_vocab_drill/internal/progress"
	"go_vocab_drill/internal/remote"
	"go_vocab_drill/internal/store"
)

//go:generate mockery --name EntryService --output ./mocks --outpkg mocks
type EntryService interface {
	List(ctx context.Context) []model.Entry
	Get(ctx context.Context, id string) (model.Entry, error)
	Add(ctx context.Context, req *model.PostEntryRequest) (model.Entry, error)
	Apply(ctx context.Context, id string, m Mutation) (model.Entry, error)
	Delete(ctx context.Context, id string) error
	Explain(ctx context.Context, id string) (model.Entry, error)
	Import(ctx context.Context, rows []model.ImportRow) (*BulkResult, error)
	Cleanup(ctx context.Context) (*BulkResult, error)
	ClearAll(ctx context.Context) (*BulkResult, error)
	Progress(ctx context.Context, today time.Time) progress.Report
	Status(ctx context.Context) SyncInfo
}

// BulkSyncer は一括処理と状態取得に使うリモート側の操作 (remote.Syncer)
type BulkSyncer interface {
	ApplyDiff(ctx context.Context, before, after []model.Entry) ([]remote.ChunkResult, error)
	BeginClear() remote.ClearPlan
	ClearAll(ctx context.Context, plan remote.ClearPlan) ([]remote.ChunkResult, error)
	Status() (remote.Status, error)
	PendingCount() int
}

// ChunkStatus は一括処理のチャンク結果 (レスポンス用)
type ChunkStatus struct {
	Index int    `json:"index"`
	Size  int    `json:"size"`
	Error string `json:"error,omitempty"`
}

// BulkResult はインポート・クリーンアップ・全削除の結果
type BulkResult struct {
	Total    int           `json:"total"`              // 処理後の件数
	Imported int           `json:"imported,omitempty"` // 取り込んだ行数
	Dropped  int           `json:"dropped,omitempty"`  // 主テキストが空で捨てた行数
	Merged   int           `json:"merged,omitempty"`   // 重複として吸収された件数
	Chunks   []ChunkStatus `json:"chunks"`

	// Duplicates はまとめた重複グループ (キー → 元のID一覧)。クリーンアップのみ。
	Duplicates map[string][]string `json:"duplicates,omitempty"`
}

// SyncInfo は表示用の同期・永続化状態
type SyncInfo struct {
	Remote           string `json:"remote"` // disabled / offline / syncing / live
	RemoteError      string `json:"remote_error,omitempty"`
	PendingRemote    int    `json:"pending_remote"`
	PersistenceError string `json:"persistence_error,omitempty"`
	PendingWrite     bool   `json:"pending_write"`
	LocalWrites      int    `json:"local_writes"` // 成功したローカルミラーへの書き込み回数
	Count            int    `json:"count"`
}

// Controller は楽観的更新を行うコントローラー。
// 変更はストアへ同期的に反映され、永続化とリモート送信は待たない。
type Controller struct {
	store     *store.Store
	writer    *persist.Writer
	syncer    BulkSyncer // nil ならローカルのみ
	explainer explain.Explainer
	plan      progress.Plan
	logger    *slog.Logger
}

func NewController(st *store.Store, writer *persist.Writer, syncer BulkSyncer, explainer explain.Explainer, plan progress.Plan, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:     st,
		writer:    writer,
		syncer:    syncer,
		explainer: explainer,
		plan:      plan,
		logger:    logger.With(slog.String("component", "service.Controller")),
	}
}

var _ EntryService = (*Controller)(nil)

func (c *Controller) List(ctx context.Context) []model.Entry {
	return c.store.Snapshot()
}

func (c *Controller) Get(ctx context.Context, id string) (model.Entry, error) {
	e, ok := c.store.Find(id)
	if !ok {
		return model.Entry{}, model.ErrNotFound
	}
	return e, nil
}

func (c *Controller) Add(ctx context.Context, req *model.PostEntryRequest) (model.Entry, error) {
	if req == nil {
		return model.Entry{}, model.ErrInvalidInput
	}
	e := model.NewEntry(req.Thai, req.Burmese, req.Category)
	if req.Count < 0 {
		return model.Entry{}, &model.ValidationError{Field: "count", Err: model.ErrInvalidCount}
	}
	e = e.WithCount(req.Count)
	if req.Status != "" {
		st, ok := model.ParseStatus(req.Status)
		if !ok {
			return model.Entry{}, &model.ValidationError{Field: "status", Err: model.ErrInvalidStatus}
		}
		e.Status = st
	}
	created, err := c.store.Upsert(e)
	if err != nil {
		return model.Entry{}, err
	}
	c.logger.Info("Entry added", slog.String("id", created.ID))
	return created, nil
}

// Apply は変更を適用して新しい値を返します。永続化やリモートの失敗はここでは返らない。
func (c *Controller) Apply(ctx context.Context, id string, m Mutation) (model.Entry, error) {
	if m == nil {
		return model.Entry{}, model.ErrInvalidInput
	}
	updated, err := c.store.Update(id, m.Apply)
	if err != nil {
		return model.Entry{}, err
	}
	c.logger.Debug("Mutation applied", slog.String("id", id), slog.String("mutation", m.Name()), slog.Int("count", updated.Count))
	return updated, nil
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	if !c.store.Remove(id) {
		return model.ErrNotFound
	}
	c.logger.Info("Entry deleted", slog.String("id", id))
	return nil
}

// Explain は外部コラボレータに解説を依頼し、結果を追記します。
func (c *Controller) Explain(ctx context.Context, id string) (model.Entry, error) {
	if c.explainer == nil {
		return model.Entry{}, fmt.Errorf("explanation is not configured: %w", model.ErrUnavailable)
	}
	e, err := c.Get(ctx, id)
	if err != nil {
		return model.Entry{}, err
	}
	text, err := c.explainer.Explain(ctx, e)
	if err != nil {
		c.logger.Warn("Explanation request failed", slog.String("id", id), slog.Any("error", err))
		return model.Entry{}, fmt.Errorf("Controller.Explain: %w", err)
	}
	return c.Apply(ctx, id, AttachExplanation{Text: text})
}

// Import は行を取り込み、既存と合わせて重複をまとめます (既存が先)。
// リモートへは差分だけをチャンクに分けて送り、失敗は呼び出し側へ返す。
func (c *Controller) Import(ctx context.Context, rows []model.ImportRow) (*BulkResult, error) {
	imported := make([]model.Entry, 0, len(rows))
	for _, r := range rows {
		if e, ok := r.ToEntry(); ok {
			imported = append(imported, e)
		}
	}
	before := c.store.Snapshot()
	combined := append(model.CloneEntries(before), imported...)
	after := dedup.Merge(combined)

	c.store.ReplaceAll(after)
	result := &BulkResult{
		Total:    len(after),
		Imported: len(imported),
		Dropped:  len(rows) - len(imported),
		Merged:   len(combined) - len(after),
	}
	c.logger.Info("Import applied locally", slog.Int("imported", result.Imported), slog.Int("dropped", result.Dropped), slog.Int("merged", result.Merged))
	return c.pushDiff(ctx, before, after, result)
}

// Cleanup は重複をまとめます。
func (c *Controller) Cleanup(ctx context.Context) (*BulkResult, error) {
	before := c.store.Snapshot()
	after := dedup.Merge(before)
	result := &BulkResult{Total: len(after), Merged: len(before) - len(after), Duplicates: dedup.Groups(before)}
	if result.Merged == 0 {
		result.Chunks = []ChunkStatus{}
		return result, nil
	}
	c.store.ReplaceAll(after)
	c.logger.Info("Cleanup merged duplicates", slog.Int("merged", result.Merged))
	return c.pushDiff(ctx, before, after, result)
}

// ClearAll はローカルとリモートの全件を削除します。
// ローカルを空にするのと同時に送信待ちの書き込みを取り下げるので、消した単語が後から復活しない。
func (c *Controller) ClearAll(ctx context.Context) (*BulkResult, error) {
	result := &BulkResult{Chunks: []ChunkStatus{}}
	if c.syncer == nil {
		c.store.Clear(nil)
		return result, nil
	}
	var plan remote.ClearPlan
	c.store.Clear(func() { plan = c.syncer.BeginClear() })
	chunks, err := c.syncer.ClearAll(ctx, plan)
	result.Chunks = chunkStatuses(chunks)
	return result, c.bulkError("clear", err)
}

func (c *Controller) pushDiff(ctx context.Context, before, after []model.Entry, result *BulkResult) (*BulkResult, error) {
	result.Chunks = []ChunkStatus{}
	if c.syncer == nil {
		return result, nil
	}
	chunks, err := c.syncer.ApplyDiff(ctx, before, after)
	result.Chunks = chunkStatuses(chunks)
	return result, c.bulkError("diff", err)
}

func (c *Controller) bulkError(op string, err error) error {
	if err == nil {
		return nil
	}
	var partial *model.BatchPartialFailure
	if errors.As(err, &partial) {
		c.logger.Error("Bulk remote write partially failed", slog.String("op", op), slog.Int("failed", len(partial.Failed)), slog.Int("total", partial.Total))
		return err
	}
	c.logger.Error("Bulk remote write failed", slog.String("op", op), slog.Any("error", err))
	return err
}

func chunkStatuses(chunks []remote.ChunkResult) []ChunkStatus {
	out := make([]ChunkStatus, 0, len(chunks))
	for _, ch := range chunks {
		cs := ChunkStatus{Index: ch.Index, Size: len(ch.IDs)}
		if ch.Err != nil {
			cs.Error = ch.Err.Error()
		}
		out = append(out, cs)
	}
	return out
}

// Progress は today 時点の進捗を算出します。
func (c *Controller) Progress(ctx context.Context, today time.Time) progress.Report {
	return progress.Compute(c.store.Snapshot(), c.plan, today)
}

func (c *Controller) Status(ctx context.Context) SyncInfo {
	info := SyncInfo{Remote: "disabled", Count: c.store.Len()}
	if c.writer != nil {
		info.PendingWrite = c.writer.Pending()
		info.LocalWrites = c.writer.Writes()
		if err := c.writer.LastError(); err != nil {
			info.PersistenceError = err.Error()
		}
	}
	if c.syncer != nil {
		st, err := c.syncer.Status()
		info.Remote = string(st)
		if err != nil {
			info.RemoteError = err.Error()
		}
		info.PendingRemote = c.syncer.PendingCount()
	}
	return info
}
