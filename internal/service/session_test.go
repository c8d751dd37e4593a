// internal/service/session_test.go
package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/remote"
	"go_vocab_drill/internal/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// recordingMirror は Save されたスナップショットを記録するミラーのモック
type recordingMirror struct {
	*mocks.Mirror
	mu    sync.Mutex
	saves [][]model.Entry
}

func newRecordingMirror(t *testing.T, initial []model.Entry) *recordingMirror {
	r := &recordingMirror{Mirror: mocks.NewMirror(t)}
	r.On("Load", mock.Anything).Return(initial, nil)
	r.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.saves = append(r.saves, args.Get(1).([]model.Entry))
	}).Return(nil).Maybe()
	return r
}

func (r *recordingMirror) savedSnapshots() [][]model.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]model.Entry{}, r.saves...)
}

func findEntry(entries []model.Entry, id string) (model.Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return model.Entry{}, false
}

func TestSession_LocalDebouncedWrite(t *testing.T) {
	ctx := context.Background()
	mirror := newRecordingMirror(t, []model.Entry{})
	sess, err := NewSession(SessionOptions{Mirror: mirror, Debounce: 80 * time.Millisecond, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx))

	created, err := sess.Controller.Add(ctx, &model.PostEntryRequest{Thai: "สวัสดี"})
	require.NoError(t, err)
	assert.Equal(t, 0, created.Count)
	assert.Equal(t, model.StatusQueue, created.Status)

	for i := 0; i < 3; i++ {
		_, err := sess.Controller.Apply(ctx, created.ID, Increment{Step: 5})
		require.NoError(t, err)
	}
	got, err := sess.Controller.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Count, "書き込みを待たずに反映される")

	require.Eventually(t, func() bool { return len(mirror.savedSnapshots()) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	saves := mirror.savedSnapshots()
	require.Len(t, saves, 1, "静止期間内の変更は1回の書き込みにまとまる")
	require.Len(t, saves[0], 1)
	assert.Equal(t, 15, saves[0][0].Count)

	require.NoError(t, sess.Close(ctx))
	require.NoError(t, sess.Close(ctx), "2回目の Close は何もしない")
	assert.Len(t, mirror.savedSnapshots(), 1, "保留がなければ Close で書かない")
}

func TestSession_CloseFlushesPendingWrite(t *testing.T) {
	ctx := context.Background()
	mirror := newRecordingMirror(t, []model.Entry{})
	sess, err := NewSession(SessionOptions{Mirror: mirror, Debounce: time.Hour, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx))

	_, err = sess.Controller.Add(ctx, &model.PostEntryRequest{Thai: "ลาก่อน"})
	require.NoError(t, err)
	assert.Empty(t, mirror.savedSnapshots())

	require.NoError(t, sess.Close(ctx))
	saves := mirror.savedSnapshots()
	require.Len(t, saves, 1)
	assert.Equal(t, "ลาก่อน", saves[0][0].Thai)
}

func TestSession_StaleSnapshotDoesNotClobber(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend := remote.NewMemoryBackend()
	mirror := newRecordingMirror(t, []model.Entry{})
	sess, err := NewSession(SessionOptions{
		Mirror:   mirror,
		Debounce: 50 * time.Millisecond,
		Backend:  backend,
		Account:  testAccount,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx))
	defer sess.Close(ctx)

	// 初回スナップショット (空) を待つ
	require.Eventually(t, func() bool {
		st, _ := sess.Syncer.Status()
		return st == remote.StatusLive
	}, 2*time.Second, 10*time.Millisecond)

	// 書き込みを失敗させて確認待ちのまま残す
	backend.SetWriteHook(func(string, []remote.Op) error { return errors.New("network down") })

	created, err := sess.Controller.Add(ctx, &model.PostEntryRequest{Thai: "สวัสดี"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := sess.Controller.Apply(ctx, created.ID, Increment{Step: 5})
		require.NoError(t, err)
	}
	require.NoError(t, sess.Syncer.Flush(ctx))
	st, _ := sess.Syncer.Status()
	assert.Equal(t, remote.StatusOffline, st)
	assert.Equal(t, 1, sess.Syncer.PendingCount(), "同じIDの操作は最新の1件だけ")
	assert.Empty(t, backend.Docs(testAccount))

	// 別経路から古い値 (count=10) が届く
	stale := model.Entry{
		ID:        created.ID,
		Thai:      "สวัสดี",
		Count:     10,
		Status:    model.StatusQueue,
		UpdatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	backend.Put(testAccount, stale)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, sess.Syncer.Flush(ctx))

	got, err := sess.Controller.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Count, "確認前の古いスナップショットで上書きしない")
	docs := backend.Docs(testAccount)
	require.Len(t, docs, 1)
	assert.Equal(t, 10, docs[0].Count)

	// 接続が回復すると再送され、count=15 を含むスナップショットで確定する
	backend.SetWriteHook(nil)
	backend.SetOffline(false)

	require.Eventually(t, func() bool {
		docs := backend.Docs(testAccount)
		if len(docs) != 1 || docs[0].Count != 15 {
			return false
		}
		e, ok := sess.Store.Find(created.ID)
		st, _ := sess.Syncer.Status()
		return ok && e.Count == 15 && !e.UpdatedAt.IsZero() && st == remote.StatusLive
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 0, sess.Syncer.PendingCount())
}

func newRemoteSession(t *testing.T, ctx context.Context, backend *remote.MemoryBackend) *Session {
	t.Helper()
	sess, err := NewSession(SessionOptions{
		Mirror:   newRecordingMirror(t, []model.Entry{}),
		Debounce: 50 * time.Millisecond,
		Backend:  backend,
		Account:  testAccount,
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx))
	t.Cleanup(func() { _ = sess.Close(context.Background()) })
	require.Eventually(t, func() bool {
		st, _ := sess.Syncer.Status()
		return st == remote.StatusLive
	}, 2*time.Second, 10*time.Millisecond)
	return sess
}

func TestSession_ClearAllWithdrawsUnsentWrites(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backend := remote.NewMemoryBackend()
	sess := newRemoteSession(t, ctx, backend)

	// 追加の書き込みだけ失敗させる
	backend.SetWriteHook(func(_ string, ops []remote.Op) error {
		if ops[0].Kind == remote.OpSet {
			return errors.New("network down")
		}
		return nil
	})
	_, err := sess.Controller.Add(ctx, &model.PostEntryRequest{Thai: "สวัสดี"})
	require.NoError(t, err)
	require.NoError(t, sess.Syncer.Flush(ctx))
	require.Equal(t, 1, sess.Syncer.PendingCount())

	res, err := sess.Controller.ClearAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Chunks, "サーバーには何もない")
	assert.Empty(t, sess.Controller.List(ctx))
	assert.Equal(t, 0, sess.Syncer.PendingCount())

	// 接続が戻っても消した単語は復活しない
	backend.SetWriteHook(nil)
	backend.SetOffline(false)
	require.Eventually(t, func() bool {
		st, _ := sess.Syncer.Status()
		return st == remote.StatusLive
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, sess.Controller.List(ctx))
	assert.Empty(t, backend.Docs(testAccount))
}

func TestSession_ClearAllRemovesRemoteDocs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backend := remote.NewMemoryBackend()
	sess := newRemoteSession(t, ctx, backend)

	for _, thai := range []string{"หนึ่ง", "สอง"} {
		_, err := sess.Controller.Add(ctx, &model.PostEntryRequest{Thai: thai})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return len(backend.Docs(testAccount)) == 2 }, 2*time.Second, 10*time.Millisecond)

	res, err := sess.Controller.ClearAll(ctx)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, 2, res.Chunks[0].Size)
	assert.Empty(t, backend.Docs(testAccount))
	require.Eventually(t, func() bool { return sess.Store.Len() == 0 && sess.Syncer.PendingCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSession_IncrementsSurviveConcurrentSnapshots(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	backend := remote.NewMemoryBackend()
	sess := newRemoteSession(t, ctx, backend)

	created, err := sess.Controller.Add(ctx, &model.PostEntryRequest{Thai: "สวัสดี"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(backend.Docs(testAccount)) == 1 }, 2*time.Second, 10*time.Millisecond)

	// 増加の間に別端末の書き込みでスナップショットを発生させ続ける
	const taps = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < taps; i++ {
			_, err := sess.Controller.Apply(ctx, created.ID, Increment{Step: 1})
			assert.NoError(t, err)
			time.Sleep(time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < taps; i++ {
			backend.Put(testAccount, model.Entry{ID: "other", Thai: "อื่น", Count: i, Status: model.StatusQueue})
			time.Sleep(time.Millisecond)
		}
	}()
	wg.Wait()

	require.Eventually(t, func() bool {
		e, ok := sess.Store.Find(created.ID)
		doc, found := findEntry(backend.Docs(testAccount), created.ID)
		return ok && found && e.Count == taps && doc.Count == taps && sess.Syncer.PendingCount() == 0
	}, 3*time.Second, 20*time.Millisecond, "増加が1回も失われない")
}

func TestSession_UploadsLocalToEmptyRemote(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	local := []model.Entry{
		{ID: "a", Thai: "หนึ่ง", Count: 3, Status: model.StatusDrill},
		{ID: "b", Thai: "สอง", Status: model.StatusQueue},
	}
	backend := remote.NewMemoryBackend()
	mirror := newRecordingMirror(t, local)
	sess, err := NewSession(SessionOptions{Mirror: mirror, Backend: backend, Account: testAccount, Logger: discardLogger()})
	require.NoError(t, err)
	require.NoError(t, sess.Start(ctx))

	require.Eventually(t, func() bool { return len(backend.Docs(testAccount)) == 2 }, 2*time.Second, 10*time.Millisecond)
	docs := backend.Docs(testAccount)
	a, ok := findEntry(docs, "a")
	require.True(t, ok)
	assert.Equal(t, 3, a.Count)
	assert.False(t, a.UpdatedAt.IsZero(), "サーバー時刻が付与される")

	require.Eventually(t, func() bool { return sess.Store.Len() == 2 }, time.Second, 10*time.Millisecond)
	require.NoError(t, sess.Close(ctx))
}

func TestNewSession_Validation(t *testing.T) {
	_, err := NewSession(SessionOptions{})
	assert.Error(t, err)

	mirror := mocks.NewMirror(t)
	_, err = NewSession(SessionOptions{Mirror: mirror, Backend: remote.NewMemoryBackend()})
	assert.Error(t, err, "アカウント未指定")
}
