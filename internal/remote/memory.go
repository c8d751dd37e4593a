package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go_vocab_drill/internal/model"
)

// MemoryBackend はプロセス内で完結するリモート。開発用サーバーとテストで使う。
// サーバー時刻の付与とオフライン時のキャッシュ配信を再現する。
type MemoryBackend struct {
	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	docs     map[string]map[string]model.Entry
	watchers map[string]map[chan struct{}]struct{}
	offline  bool
	hook     func(account string, ops []Op) error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		now:      time.Now,
		docs:     map[string]map[string]model.Entry{},
		watchers: map[string]map[chan struct{}]struct{}{},
	}
}

// SetClock はサーバー時計を差し替えます。
func (b *MemoryBackend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// SetOffline は接続断を再現します。オフライン中の書き込みは失敗し、
// リスナーには FromCache のスナップショットが届く。
func (b *MemoryBackend) SetOffline(offline bool) {
	b.mu.Lock()
	b.offline = offline
	b.notifyAllLocked()
	b.mu.Unlock()
}

// SetWriteHook は書き込みの直前に呼ばれる関数を設定します。エラーを返すとその書き込みは失敗する。
func (b *MemoryBackend) SetWriteHook(hook func(account string, ops []Op) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = hook
}

// Put はサーバー時刻を付与せずにそのまま書き込みます (別端末からの書き込みの再現用)。
func (b *MemoryBackend) Put(account string, e model.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collectionLocked(account)[e.ID] = e
	b.notifyLocked(account)
}

// Docs は現在の内容を並び順どおりに返します。
func (b *MemoryBackend) Docs(account string) []model.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entriesLocked(account)
}

func (b *MemoryBackend) Watch(ctx context.Context, account string, deliver func(Snapshot)) error {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	if b.watchers[account] == nil {
		b.watchers[account] = map[chan struct{}]struct{}{}
	}
	b.watchers[account][ch] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.watchers[account], ch)
		b.mu.Unlock()
	}()

	deliver(b.snapshot(account))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch:
			deliver(b.snapshot(account))
		}
	}
}

func (b *MemoryBackend) Set(ctx context.Context, account string, e model.Entry) (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(ctx, account, []Op{SetOp(e)}); err != nil {
		return time.Time{}, err
	}
	at := b.tickLocked()
	e.UpdatedAt = at
	b.collectionLocked(account)[e.ID] = e
	b.notifyLocked(account)
	return at, nil
}

func (b *MemoryBackend) Delete(ctx context.Context, account string, id string) (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(ctx, account, []Op{DeleteOp(id)}); err != nil {
		return time.Time{}, err
	}
	at := b.tickLocked()
	delete(b.collectionLocked(account), id)
	b.notifyLocked(account)
	return at, nil
}

func (b *MemoryBackend) Commit(ctx context.Context, account string, ops []Op) error {
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("MemoryBackend.Commit: %d ops exceeds batch limit %d", len(ops), MaxBatchOps)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkLocked(ctx, account, ops); err != nil {
		return err
	}
	at := b.tickLocked()
	coll := b.collectionLocked(account)
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			e := op.Entry
			e.UpdatedAt = at
			coll[op.ID] = e
		case OpDelete:
			delete(coll, op.ID)
		}
	}
	b.notifyLocked(account)
	return nil
}

func (b *MemoryBackend) ListIDs(ctx context.Context, account string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offline {
		return nil, fmt.Errorf("MemoryBackend.ListIDs: %w", model.ErrUnavailable)
	}
	ids := make([]string, 0, len(b.docs[account]))
	for _, e := range b.entriesLocked(account) {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (b *MemoryBackend) Close() error { return nil }

func (b *MemoryBackend) snapshot(account string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{Entries: b.entriesLocked(account), FromCache: b.offline}
	if !b.offline {
		snap.ReadAt = b.tickLocked()
	}
	return snap
}

func (b *MemoryBackend) checkLocked(ctx context.Context, account string, ops []Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.offline {
		return fmt.Errorf("memory backend: %w", model.ErrUnavailable)
	}
	if b.hook != nil {
		return b.hook(account, ops)
	}
	return nil
}

// tickLocked は単調増加するサーバー時刻を返す
func (b *MemoryBackend) tickLocked() time.Time {
	at := b.now().UTC()
	if !at.After(b.last) {
		at = b.last.Add(time.Microsecond)
	}
	b.last = at
	return at
}

func (b *MemoryBackend) collectionLocked(account string) map[string]model.Entry {
	coll, ok := b.docs[account]
	if !ok {
		coll = map[string]model.Entry{}
		b.docs[account] = coll
	}
	return coll
}

func (b *MemoryBackend) entriesLocked(account string) []model.Entry {
	out := make([]model.Entry, 0, len(b.docs[account]))
	for _, e := range b.docs[account] {
		out = append(out, e)
	}
	sortByUpdatedDesc(out)
	return out
}

func (b *MemoryBackend) notifyLocked(account string) {
	for ch := range b.watchers[account] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *MemoryBackend) notifyAllLocked() {
	for account := range b.watchers {
		b.notifyLocked(account)
	}
}
