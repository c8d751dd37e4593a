package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	mu        sync.Mutex
	snapshots [][]model.Entry
}

func (f *fakeScheduler) Schedule(snapshot []model.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

type fakeRemote struct {
	sets    []model.Entry
	deletes []string
}

func (f *fakeRemote) EnqueueSet(e model.Entry) { f.sets = append(f.sets, e) }
func (f *fakeRemote) EnqueueDelete(id string)  { f.deletes = append(f.deletes, id) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(id, thai string, count int) model.Entry {
	return model.Entry{ID: id, Thai: thai, Count: count, Status: model.StatusQueue}
}

func seedOf(entries ...model.Entry) SeedFunc {
	return func() ([]model.Entry, error) { return entries, nil }
}

func TestStore_Load(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(m *mocks.Mirror)
		seed       SeedFunc
		wantIDs    []string
		wantWrites int
	}{
		{
			name: "正常系: ミラーの内容を読み込む",
			setup: func(m *mocks.Mirror) {
				m.On("Load", mock.Anything).Return([]model.Entry{entry("a", "ก", 1), entry("b", "ข", 2)}, nil)
			},
			seed:    seedOf(entry("s", "ส", 0)),
			wantIDs: []string{"a", "b"},
		},
		{
			name: "正常系: 空のミラーは初期データで埋めて書き出しを予約",
			setup: func(m *mocks.Mirror) {
				m.On("Load", mock.Anything).Return([]model.Entry{}, nil)
			},
			seed:       seedOf(entry("s", "ส", 0)),
			wantIDs:    []string{"s"},
			wantWrites: 1,
		},
		{
			name: "異常系: 破損したミラーは初期データにフォールバック",
			setup: func(m *mocks.Mirror) {
				m.On("Load", mock.Anything).Return(nil, errors.New("corrupt"))
			},
			seed:       seedOf(entry("s", "ส", 0)),
			wantIDs:    []string{"s"},
			wantWrites: 1,
		},
		{
			name: "異常系: 初期データも読めなければ空",
			setup: func(m *mocks.Mirror) {
				m.On("Load", mock.Anything).Return(nil, errors.New("corrupt"))
			},
			seed:    func() ([]model.Entry, error) { return nil, errors.New("bad seed") },
			wantIDs: []string{},
		},
		{
			name: "正常系: 重複IDと不正な行は落とす",
			setup: func(m *mocks.Mirror) {
				m.On("Load", mock.Anything).Return([]model.Entry{entry("a", "ก", 1), entry("a", "ข", 2), entry("c", " ", 0)}, nil)
			},
			wantIDs: []string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mirror := mocks.NewMirror(t)
			tt.setup(mirror)
			sched := &fakeScheduler{}
			s := New(Options{Mirror: mirror, Scheduler: sched, Seed: tt.seed, Logger: discardLogger()})

			got := s.Load(context.Background())
			ids := make([]string, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantWrites, sched.count())
		})
	}
}

func TestStore_Upsert(t *testing.T) {
	sched := &fakeScheduler{}
	remote := &fakeRemote{}
	s := New(Options{Scheduler: sched, Logger: discardLogger()})
	s.SetRemote(remote)
	s.ReplaceAll([]model.Entry{entry("a", "ก", 1), entry("b", "ข", 2)})

	t.Run("正常系: 新しいIDは先頭に挿入", func(t *testing.T) {
		_, err := s.Upsert(entry("c", "ค", 0))
		require.NoError(t, err)
		snap := s.Snapshot()
		require.Len(t, snap, 3)
		assert.Equal(t, "c", snap[0].ID)
	})

	t.Run("正常系: 既存IDは同じ位置で置き換え", func(t *testing.T) {
		_, err := s.Upsert(entry("b", "ขข", 9))
		require.NoError(t, err)
		snap := s.Snapshot()
		require.Len(t, snap, 3)
		assert.Equal(t, "b", snap[2].ID)
		assert.Equal(t, 9, snap[2].Count)
	})

	t.Run("異常系: 主テキストが空なら拒否してストアは変わらない", func(t *testing.T) {
		before := sched.count()
		_, err := s.Upsert(entry("d", "  ", 0))
		assert.ErrorIs(t, err, model.ErrEmptyPrimaryText)
		assert.Equal(t, 3, s.Len())
		assert.Equal(t, before, sched.count())
	})

	// ReplaceAll は送信しない。Upsert 2回分だけ
	require.Len(t, remote.sets, 2)
	assert.Equal(t, "c", remote.sets[0].ID)
	assert.Equal(t, "b", remote.sets[1].ID)
}

func TestStore_Update(t *testing.T) {
	remote := &fakeRemote{}
	s := New(Options{Logger: discardLogger()})
	s.SetRemote(remote)
	s.ReplaceAll([]model.Entry{entry("a", "ก", 1)})

	got, err := s.Update("a", func(e model.Entry) (model.Entry, error) {
		return e.WithCount(e.Count + 5), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6, got.Count)
	require.Len(t, remote.sets, 1)

	_, err = s.Update("missing", func(e model.Entry) (model.Entry, error) { return e, nil })
	assert.ErrorIs(t, err, model.ErrNotFound)

	boom := errors.New("boom")
	_, err = s.Update("a", func(e model.Entry) (model.Entry, error) { return e, boom })
	assert.ErrorIs(t, err, boom)
	e, _ := s.Find("a")
	assert.Equal(t, 6, e.Count, "失敗時は変更しない")
}

func TestStore_Remove(t *testing.T) {
	sched := &fakeScheduler{}
	remote := &fakeRemote{}
	s := New(Options{Scheduler: sched, Logger: discardLogger()})
	s.SetRemote(remote)
	s.ReplaceAll([]model.Entry{entry("a", "ก", 1), entry("b", "ข", 2), entry("c", "ค", 3)})
	before := sched.count()

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"), "存在しなければ何もしない")
	assert.Equal(t, before+1, sched.count())
	assert.Equal(t, []string{"b"}, remote.deletes)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "c", snap[1].ID)
	_, ok := s.Find("c")
	assert.True(t, ok, "インデックスが更新される")
}

func TestStore_ApplyRemote(t *testing.T) {
	sched := &fakeScheduler{}
	remote := &fakeRemote{}
	s := New(Options{Scheduler: sched, Logger: discardLogger()})
	s.SetRemote(remote)

	assert.True(t, s.ApplyRemote([]model.Entry{entry("x", "ก", 1)}))
	assert.Equal(t, 1, sched.count(), "ローカルミラーには書く")
	assert.False(t, s.ApplyRemote([]model.Entry{entry("x", "ก", 1)}), "同じ内容なら何もしない")
	assert.Equal(t, 1, sched.count())
	assert.Empty(t, remote.sets, "リモートへ送り返さない")
	assert.Empty(t, remote.deletes)
	_, ok := s.Find("x")
	assert.True(t, ok)
}

func TestStore_ApplyRemoteFuncExcludesConcurrentUpdate(t *testing.T) {
	s := New(Options{Logger: discardLogger()})
	_, err := s.Upsert(entry("a", "ก", 15))
	require.NoError(t, err)

	updated := make(chan model.Entry, 1)
	ranEarly := false
	s.ApplyRemoteFunc(func() []model.Entry {
		go func() {
			e, err := s.Update("a", func(e model.Entry) (model.Entry, error) {
				return e.WithCount(e.Count + 5), nil
			})
			assert.NoError(t, err)
			updated <- e
		}()
		select {
		case <-updated:
			ranEarly = true
		case <-time.After(50 * time.Millisecond):
		}
		// 組み立て中のリモート側の値 (更新前の 15)
		return []model.Entry{entry("a", "ก", 15), entry("b", "ข", 1)}
	})
	require.False(t, ranEarly, "一覧の組み立て中に更新が割り込んだ")

	got := <-updated
	assert.Equal(t, 20, got.Count, "更新はリモート反映の後に適用される")
	e, ok := s.Find("a")
	require.True(t, ok)
	assert.Equal(t, 20, e.Count)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Clear(t *testing.T) {
	sched := &fakeScheduler{}
	s := New(Options{Scheduler: sched, Logger: discardLogger()})
	s.ReplaceAll([]model.Entry{entry("a", "ก", 1), entry("b", "ข", 2)})

	called := false
	s.Clear(func() {
		called = true
		// ロック内で呼ばれるので、この時点で空になっている
		assert.Empty(t, s.entries)
	})
	assert.True(t, called)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 2, sched.count(), "全削除も永続化される")
}

func TestStore_OnChangeOrder(t *testing.T) {
	s := New(Options{Logger: discardLogger()})
	var mu sync.Mutex
	var sizes []int
	s.OnChange(func(snap []model.Entry) {
		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, len(snap))
		// リスナー内から読んでもデッドロックしない
		_ = s.Len()
	})

	s.ReplaceAll(nil)
	_, _ = s.Upsert(entry("a", "ก", 0))
	_, _ = s.Upsert(entry("b", "ข", 0))
	s.Remove("a")

	assert.Equal(t, []int{0, 1, 2, 1}, sizes)
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := New(Options{Logger: discardLogger()})
	s.ReplaceAll([]model.Entry{entry("a", "ก", 1)})
	snap := s.Snapshot()
	snap[0].Count = 100
	e, _ := s.Find("a")
	assert.Equal(t, 1, e.Count)
}
