// Package store はセッション中の正となる語彙コレクションを保持します。
// プレゼンテーション層からの書き込みはすべてここを通る。
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/repository"
)

// SnapshotScheduler は全件スナップショットの永続化を予約する (persist.Writer)
type SnapshotScheduler interface {
	Schedule(snapshot []model.Entry)
}

// RemoteForwarder はリモートへの書き込みを非同期に予約する (remote.Syncer)。
// 呼び出しはブロックしないこと。
type RemoteForwarder interface {
	EnqueueSet(entry model.Entry)
	EnqueueDelete(id string)
}

// SeedFunc は同梱の初期データを返す
type SeedFunc func() ([]model.Entry, error)

type Options struct {
	Mirror    repository.Mirror
	Scheduler SnapshotScheduler
	Seed      SeedFunc // nil なら初期データなし
	Logger    *slog.Logger
}

// Store はメモリ上のコレクションを単一の所有者として保持します。
// 変更はすべて mu で直列化され、呼び出し順に適用される。
type Store struct {
	mu      sync.RWMutex
	entries []model.Entry
	index   map[string]int

	mirror    repository.Mirror
	scheduler SnapshotScheduler
	remote    RemoteForwarder
	seed      SeedFunc
	logger    *slog.Logger

	// notifyMu は変更通知を変更順に配送するためのロック
	notifyMu  sync.Mutex
	listeners []func(snapshot []model.Entry)
}

func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		index:     map[string]int{},
		mirror:    opts.Mirror,
		scheduler: opts.Scheduler,
		seed:      opts.Seed,
		logger:    logger.With(slog.String("component", "store")),
	}
}

// SetRemote はリモート構成の場合にフォワーダーを設定します。
func (s *Store) SetRemote(r RemoteForwarder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = r
}

// OnChange は変更のたびに全件スナップショットを受け取るリスナーを登録します。
// リスナー内からストアを読んでもよいが、長時間ブロックしないこと。
func (s *Store) OnChange(fn func(snapshot []model.Entry)) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load は起動時にミラーから読み込みます。ミラーが空・破損していれば初期データを使う。
// 呼び出し側には失敗を返さない (復旧できなければ空)。
func (s *Store) Load(ctx context.Context) []model.Entry {
	var entries []model.Entry
	fromSeed := false
	if s.mirror != nil {
		loaded, err := s.mirror.Load(ctx)
		if err != nil {
			s.logger.Error("Failed to load local mirror, falling back to seed data", slog.Any("error", err))
		} else {
			entries = loaded
		}
	}
	if len(entries) == 0 && s.seed != nil {
		seed, err := s.seed()
		if err != nil {
			s.logger.Error("Failed to decode seed data, starting empty", slog.Any("error", err))
		} else {
			entries = seed
			fromSeed = len(seed) > 0
		}
	}

	s.mu.Lock()
	s.setLocked(entries)
	snap := model.CloneEntries(s.entries)
	// 初期データは採番したIDを固定するために書き出しておく
	if fromSeed && s.scheduler != nil {
		s.scheduler.Schedule(snap)
	}
	s.notifyAndUnlock(snap)

	s.logger.Info("Store hydrated", slog.Int("count", len(snap)), slog.Bool("seeded", fromSeed))
	return snap
}

// Snapshot は現在のコレクションのコピーを返します。
func (s *Store) Snapshot() []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneEntries(s.entries)
}

// Len は件数を返します。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Find はIDで1件取得します。
func (s *Store) Find(id string) (model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Entry{}, false
	}
	return s.entries[i], true
}

// Upsert は未知のIDなら先頭に挿入し、既知なら同じ位置で置き換えます。
func (s *Store) Upsert(e model.Entry) (model.Entry, error) {
	valid, err := e.Validate()
	if err != nil {
		return model.Entry{}, err
	}
	s.mu.Lock()
	s.upsertLocked(valid)
	s.afterLocalMutation(func(r RemoteForwarder) { r.EnqueueSet(valid) })
	return valid, nil
}

// Update はIDのエントリに fn を適用して置き換えます (読み込みと書き込みの間に他の変更は入らない)。
func (s *Store) Update(id string, fn func(model.Entry) (model.Entry, error)) (model.Entry, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return model.Entry{}, fmt.Errorf("store.Update %s: %w", id, model.ErrNotFound)
	}
	next, err := fn(s.entries[i])
	if err == nil {
		next.ID = id
		next, err = next.Validate()
	}
	if err != nil {
		s.mu.Unlock()
		return model.Entry{}, err
	}
	s.entries[i] = next
	s.afterLocalMutation(func(r RemoteForwarder) { r.EnqueueSet(next) })
	return next, nil
}

// Remove はIDで削除します。存在しなければ何もしない。
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	s.reindexLocked()
	s.afterLocalMutation(func(r RemoteForwarder) { r.EnqueueDelete(id) })
	return true
}

// ReplaceAll はコレクションを丸ごと差し替えます (インポート、クリーンアップ用)。
// 永続化は必ず予約される。リモートへの一括反映は呼び出し側が同期的に行う。
func (s *Store) ReplaceAll(entries []model.Entry) {
	s.mu.Lock()
	s.setLocked(entries)
	s.afterLocalMutation(nil)
}

// Clear は全件を削除し、ロックを保持したまま within を呼びます。
// within の間は他の変更が入らないので、リモートの送信待ちを同じ時点で破棄できる。
func (s *Store) Clear(within func()) {
	s.mu.Lock()
	s.setLocked(nil)
	if within != nil {
		within()
	}
	s.afterLocalMutation(nil)
}

// ApplyRemote はリモートから届いたスナップショットで表示中のコレクションを置き換えます。
// ローカルミラーへの書き込みは予約するが、リモートへは送り返さない。
// 内容が現在と同じなら何もせず false を返す。
func (s *Store) ApplyRemote(entries []model.Entry) bool {
	return s.ApplyRemoteFunc(func() []model.Entry { return entries })
}

// ApplyRemoteFunc は ApplyRemote と同じだが、置き換え後の一覧をロック内で build から得る。
// 未確認のローカル変更を重ねる処理をここで行えば、その間に入った変更を古い値で上書きしない。
func (s *Store) ApplyRemoteFunc(build func() []model.Entry) bool {
	s.mu.Lock()
	entries := build()
	if sameCollection(s.entries, entries) {
		s.mu.Unlock()
		return false
	}
	s.setLocked(entries)
	s.afterLocalMutation(nil)
	return true
}

// afterLocalMutation は mu を保持した状態で呼ぶ。永続化とリモート送信を予約してから通知する。
func (s *Store) afterLocalMutation(forward func(RemoteForwarder)) {
	snap := model.CloneEntries(s.entries)
	if s.scheduler != nil {
		s.scheduler.Schedule(snap)
	}
	if forward != nil && s.remote != nil {
		forward(s.remote)
	}
	s.notifyAndUnlock(snap)
}

// notifyAndUnlock は mu を解放してからリスナーへ通知する。
// notifyMu を先に取ることで通知の順序は変更の順序と一致する。
func (s *Store) notifyAndUnlock(snap []model.Entry) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	for _, fn := range s.listeners {
		fn(snap)
	}
}

func (s *Store) upsertLocked(e model.Entry) {
	if i, ok := s.index[e.ID]; ok {
		s.entries[i] = e
		return
	}
	s.entries = append([]model.Entry{e}, s.entries...)
	s.reindexLocked()
}

// setLocked は不正なエントリと重複IDを除いて差し替える。
func (s *Store) setLocked(entries []model.Entry) {
	next := make([]model.Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		valid, err := e.Validate()
		if err != nil {
			s.logger.Warn("Dropping invalid entry", slog.String("id", e.ID), slog.Any("error", err))
			continue
		}
		if seen[valid.ID] {
			s.logger.Warn("Dropping duplicate id", slog.String("id", valid.ID))
			continue
		}
		seen[valid.ID] = true
		next = append(next, valid)
	}
	s.entries = next
	s.reindexLocked()
}

func sameCollection(a, b []model.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameContent(b[i]) || !a[i].UpdatedAt.Equal(b[i].UpdatedAt) {
			return false
		}
	}
	return true
}

func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		s.index[e.ID] = i
	}
}
