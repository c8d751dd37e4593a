package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go_vocab_drill/internal/model"
)

// Status はユーザーに見せる同期状態
type Status string

const (
	StatusOffline Status = "offline"
	StatusSyncing Status = "syncing"
	StatusLive    Status = "live"
)

// DefaultBatchSize はバッチ上限より少し小さい既定のチャンクサイズ
const DefaultBatchSize = MaxBatchOps

type Options struct {
	Account        string
	BatchSize      int
	Logger         *slog.Logger
	ReconnectDelay time.Duration // リスナー再接続の初期待ち時間
	MaxConcurrency int           // 一括処理で同時に送るチャンク数
}

type opState int

const (
	opQueued opState = iota
	opInflight
	opAcked
	opFailed
)

// pendingOp は送信待ち・確認待ちの操作。ID ごとに最新の1件だけを持つ。
type pendingOp struct {
	op    Op
	seq   uint64
	state opState
	ackAt time.Time
}

// ChunkResult は一括処理のチャンク1件の結果
type ChunkResult struct {
	Index int
	IDs   []string
	Err   error
}

// Syncer はリモートとの購読と書き込みをまとめる。
// 書き込みは送信箱 (outbox) に積まれ、ワーカーが順に送る。失敗した操作は
// 接続の回復 (サーバー確認済みのスナップショット、または書き込み成功) を観測するまで保留される。
type Syncer struct {
	backend   Backend
	account   string
	batchSize int
	parallel  int
	reconnect time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	pending   map[string]*pendingOp
	seq       uint64
	gotSnap   bool
	fromCache bool
	listenErr error
	writeErr  error
	status    Status
	onStatus  []func(Status, error)

	// sendMu はワーカーが1件送っている間保持される
	sendMu sync.Mutex

	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncer(backend Backend, opts Options) (*Syncer, error) {
	if backend == nil {
		return nil, errors.New("NewSyncer: backend required")
	}
	if opts.Account == "" {
		return nil, errors.New("NewSyncer: account required")
	}
	size := opts.BatchSize
	if size <= 0 || size > MaxBatchOps {
		size = DefaultBatchSize
	}
	parallel := opts.MaxConcurrency
	if parallel <= 0 {
		parallel = 4
	}
	reconnect := opts.ReconnectDelay
	if reconnect <= 0 {
		reconnect = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		backend:   backend,
		account:   opts.Account,
		batchSize: size,
		parallel:  parallel,
		reconnect: reconnect,
		logger:    logger.With(slog.String("component", "remote.Syncer")),
		pending:   map[string]*pendingOp{},
		status:    StatusSyncing,
		kick:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.wg.Add(1)
	go s.runOutbox()
	return s, nil
}

// Subscribe はリモートの購読を開始します。返り値の関数で解除する (何度呼んでもよい)。
// 解除後にコールバックは呼ばれない。コールバック内から解除関数を呼ばないこと。
func (s *Syncer) Subscribe(onChange func(Snapshot), onError func(error)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(s.ctx)
	var cbMu sync.Mutex
	active := true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		delay := s.reconnect
		for {
			err := s.backend.Watch(ctx, s.account, func(snap Snapshot) {
				s.observeSnapshot(snap)
				cbMu.Lock()
				defer cbMu.Unlock()
				if active && onChange != nil {
					onChange(snap)
				}
				delay = s.reconnect
			})
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				err = errors.New("listener stopped")
			}
			serr := &model.SyncError{Op: "listen", Err: err}
			s.observeListenError(serr)
			cbMu.Lock()
			if active && onError != nil {
				onError(serr)
			}
			cbMu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, 30*time.Second)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cbMu.Lock()
			active = false
			cbMu.Unlock()
			cancel()
		})
	}
}

// EnqueueSet は送信箱に書き込みを積みます。ブロックしない。
func (s *Syncer) EnqueueSet(e model.Entry) {
	s.enqueue(SetOp(e))
}

// EnqueueDelete は送信箱に削除を積みます。ブロックしない。
func (s *Syncer) EnqueueDelete(id string) {
	s.enqueue(DeleteOp(id))
}

func (s *Syncer) enqueue(op Op) {
	s.mu.Lock()
	s.trackLocked(op, opQueued)
	s.mu.Unlock()
	s.emitStatus()
	s.wake()
}

// Overlay はスナップショットに未確認のローカル変更を重ねた一覧を返します。
// 確認待ちのIDは、サーバーがその書き込み以降の内容を返すまでローカルの値を優先する。
func (s *Syncer) Overlay(snap Snapshot) []model.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := model.CloneEntries(snap.Entries)
	pos := make(map[string]int, len(out))
	for i, e := range out {
		pos[e.ID] = i
	}

	var front []model.Entry
	removed := map[string]bool{}
	for _, id := range s.pendingIDsLocked() {
		p := s.pending[id]
		i, present := pos[id]
		switch p.op.Kind {
		case OpSet:
			if p.state == opAcked {
				caughtUp := present && !out[i].UpdatedAt.Before(p.ackAt)
				deletedLater := !present && !snap.FromCache && snap.ReadAt.After(p.ackAt)
				if caughtUp || deletedLater {
					delete(s.pending, id)
					continue
				}
			}
			local := p.op.Entry
			if p.state == opAcked {
				local.UpdatedAt = p.ackAt
			}
			if present {
				out[i] = local
			} else {
				// 新しい操作ほど先頭
				front = append([]model.Entry{local}, front...)
			}
		case OpDelete:
			if p.state == opAcked {
				recreated := present && out[i].UpdatedAt.After(p.ackAt)
				if !present || recreated {
					delete(s.pending, id)
					continue
				}
			}
			if present {
				removed[id] = true
			}
		}
	}

	result := make([]model.Entry, 0, len(front)+len(out))
	result = append(result, front...)
	for _, e := range out {
		if !removed[e.ID] {
			result = append(result, e)
		}
	}
	return result
}

// ImportMany はエントリをチャンクに分けて書き込みます。
func (s *Syncer) ImportMany(ctx context.Context, entries []model.Entry) ([]ChunkResult, error) {
	ops := make([]Op, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, SetOp(e))
	}
	return s.commitChunks(ctx, "import", ops)
}

// ClearPlan は全削除を始めた時点で送信箱から取り下げた操作
type ClearPlan struct {
	seqs map[string]uint64
}

// BeginClear は送信箱の操作をすべて削除に置き換え、以後送信されないようにします。
// ローカルのコレクションを空にするのと同じクリティカルセクションで呼ぶこと。
func (s *Syncer) BeginClear() ClearPlan {
	s.mu.Lock()
	plan := ClearPlan{seqs: make(map[string]uint64, len(s.pending))}
	for _, id := range s.pendingIDsLocked() {
		plan.seqs[id] = s.trackLocked(DeleteOp(id), opInflight)
	}
	s.mu.Unlock()
	s.emitStatus()
	return plan
}

// ClearAll はリモートの全ドキュメントをチャンクに分けて削除します。
// plan で取り下げた操作のうちサーバーに届いていないものは送らずに捨てる。
// BeginClear 以降に積まれた操作はそのまま残す。
func (s *Syncer) ClearAll(ctx context.Context, plan ClearPlan) ([]ChunkResult, error) {
	// 送信中の1件を待つ。届いていれば ListIDs に含まれる
	s.sendMu.Lock()
	s.sendMu.Unlock()

	ids, err := s.backend.ListIDs(ctx, s.account)
	if err != nil {
		// 取り下げた削除は送信箱に戻し、接続が戻ったら1件ずつ送る
		s.mu.Lock()
		for id, seq := range plan.seqs {
			if p, ok := s.pending[id]; ok && p.seq == seq {
				p.state = opQueued
			}
		}
		s.mu.Unlock()
		serr := &model.SyncError{Op: "clear", Err: err}
		s.observeWrite(serr)
		s.wake()
		return nil, serr
	}

	onServer := make(map[string]bool, len(ids))
	for _, id := range ids {
		onServer[id] = true
	}
	var (
		ops  []Op
		seqs []uint64
	)
	s.mu.Lock()
	for id, seq := range plan.seqs {
		if p, ok := s.pending[id]; ok && p.seq == seq && !onServer[id] {
			delete(s.pending, id)
		}
	}
	for _, id := range ids {
		p, ok := s.pending[id]
		switch {
		case !ok:
			seqs = append(seqs, s.trackLocked(DeleteOp(id), opInflight))
		case p.seq == plan.seqs[id]:
			seqs = append(seqs, p.seq)
		default:
			// 全削除の後に積まれたローカルの操作が優先
			continue
		}
		ops = append(ops, DeleteOp(id))
	}
	s.mu.Unlock()
	s.emitStatus()
	return s.commitTracked(ctx, "clear", ops, seqs)
}

// ApplyDiff は before から after への差分 (新規・変更・削除) だけを書き込みます。
func (s *Syncer) ApplyDiff(ctx context.Context, before, after []model.Entry) ([]ChunkResult, error) {
	return s.commitChunks(ctx, "diff", Diff(before, after))
}

// Diff は before を after にするための操作を返します。
func Diff(before, after []model.Entry) []Op {
	prev := make(map[string]model.Entry, len(before))
	for _, e := range before {
		prev[e.ID] = e
	}
	next := make(map[string]bool, len(after))
	var ops []Op
	for _, e := range after {
		next[e.ID] = true
		if old, ok := prev[e.ID]; ok && old.SameContent(e) {
			continue
		}
		ops = append(ops, SetOp(e))
	}
	for _, e := range before {
		if !next[e.ID] {
			ops = append(ops, DeleteOp(e.ID))
		}
	}
	return ops
}

// commitChunks は各チャンクを独立したバッチとして送り、結果をチャンクごとに返す。
// 失敗したチャンクがあれば *model.BatchPartialFailure を返す。
func (s *Syncer) commitChunks(ctx context.Context, label string, ops []Op) ([]ChunkResult, error) {
	seqs := make([]uint64, len(ops))
	s.mu.Lock()
	for i, op := range ops {
		seqs[i] = s.trackLocked(op, opInflight)
	}
	s.mu.Unlock()
	s.emitStatus()
	return s.commitTracked(ctx, label, ops, seqs)
}

// commitTracked は送信箱に登録済みの ops (seqs は各操作の通し番号) を送る
func (s *Syncer) commitTracked(ctx context.Context, label string, ops []Op, seqs []uint64) ([]ChunkResult, error) {
	chunks := chunkOps(ops, s.batchSize)
	results := make([]ChunkResult, len(chunks))
	if len(chunks) == 0 {
		return results, nil
	}
	chunkSeqs := make([][]uint64, len(chunks))
	for i, start := 0, 0; i < len(chunks); i++ {
		chunkSeqs[i] = seqs[start : start+len(chunks[i])]
		start += len(chunks[i])
	}

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i, chunk := range chunks {
		g.Go(func() error {
			ids := make([]string, len(chunk))
			for j, op := range chunk {
				ids[j] = op.ID
			}
			err := s.backend.Commit(ctx, s.account, chunk)
			results[i] = ChunkResult{Index: i, IDs: ids, Err: err}
			s.settleChunk(chunk, chunkSeqs[i], err)
			return nil
		})
	}
	_ = g.Wait()

	var failed []model.ChunkFailure
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, model.ChunkFailure{Index: r.Index, IDs: r.IDs, Err: r.Err})
		}
	}
	s.logger.Info("Bulk commit finished",
		slog.String("op", label),
		slog.Int("ops", len(ops)),
		slog.Int("chunks", len(chunks)),
		slog.Int("failed", len(failed)))
	if len(failed) > 0 {
		return results, &model.BatchPartialFailure{Total: len(chunks), Failed: failed}
	}
	return results, nil
}

// settleChunk は一括処理の結果を反映する。失敗したチャンクは呼び出し側に返すので送信箱には残さない。
func (s *Syncer) settleChunk(chunk []Op, seqs []uint64, err error) {
	s.mu.Lock()
	for j, op := range chunk {
		p, ok := s.pending[op.ID]
		if !ok || p.seq != seqs[j] {
			continue
		}
		if err != nil {
			delete(s.pending, op.ID)
			continue
		}
		// バッチは時刻を返さないので、次にその内容を含むスナップショットで解消される
		p.state = opAcked
	}
	s.mu.Unlock()
	if err != nil {
		s.observeWrite(&model.SyncError{Op: "batch", Err: err})
	} else {
		s.observeWrite(nil)
	}
}

// Status は現在の同期状態と直近のエラーを返します。
func (s *Syncer) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.computeStatusLocked()
}

// OnStatus は同期状態が変わるたびに呼ばれる関数を登録します。
func (s *Syncer) OnStatus(fn func(Status, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = append(s.onStatus, fn)
}

// PendingCount は未確認の操作数を返します。
func (s *Syncer) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pending {
		if p.state != opAcked {
			n++
		}
	}
	return n
}

// Flush は送信箱の送信待ち・送信中の操作がなくなるまで待ちます。
// 失敗して保留中の操作は待たない。
func (s *Syncer) Flush(ctx context.Context) error {
	s.wake()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.outboxIdle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Syncer) outboxIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pending {
		if p.state == opQueued || p.state == opInflight {
			return false
		}
	}
	return true
}

// Close は購読とワーカーを止め、バックエンドを閉じます。
func (s *Syncer) Close() error {
	s.cancel()
	s.wg.Wait()
	if n := s.PendingCount(); n > 0 {
		s.logger.Warn("Closing with unsent operations", slog.Int("pending", n))
	}
	return s.backend.Close()
}

func (s *Syncer) runOutbox() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.kick:
		}
		for s.sendNext() {
			if s.ctx.Err() != nil {
				return
			}
		}
	}
}

// sendNext は送信待ちを1件送る。送るものがなければ false。
func (s *Syncer) sendNext() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	op, seq, ok := s.nextQueued()
	if !ok {
		return false
	}
	_ = s.complete(op, seq, s.send(s.ctx, op))
	return true
}

func (s *Syncer) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// nextQueued は最も古い送信待ちを取り出して送信中にする
func (s *Syncer) nextQueued() (Op, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *pendingOp
	for _, p := range s.pending {
		if p.state == opQueued && (next == nil || p.seq < next.seq) {
			next = p
		}
	}
	if next == nil {
		return Op{}, 0, false
	}
	next.state = opInflight
	return next.op, next.seq, true
}

type sendResult struct {
	at  time.Time
	err error
}

func (s *Syncer) send(ctx context.Context, op Op) sendResult {
	var (
		at  time.Time
		err error
	)
	switch op.Kind {
	case OpSet:
		at, err = s.backend.Set(ctx, s.account, op.Entry)
	case OpDelete:
		at, err = s.backend.Delete(ctx, s.account, op.ID)
	}
	return sendResult{at: at, err: err}
}

// complete は送信結果を反映する。より新しい操作に置き換わっていれば状態は変えない。
func (s *Syncer) complete(op Op, seq uint64, res sendResult) error {
	var err error
	if res.err != nil {
		err = &model.SyncError{Op: op.Kind.String(), ID: op.ID, Err: res.err}
	}
	s.mu.Lock()
	if p, ok := s.pending[op.ID]; ok && p.seq == seq {
		if err != nil {
			p.state = opFailed
		} else {
			p.state = opAcked
			p.ackAt = res.at
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Remote write failed, keeping in outbox", slog.String("id", op.ID), slog.String("op", op.Kind.String()), slog.Any("error", res.err))
	}
	s.observeWrite(err)
	return err
}

// observeWrite は書き込み結果から接続状態を更新する。成功は接続回復とみなす。
func (s *Syncer) observeWrite(err error) {
	s.mu.Lock()
	s.writeErr = err
	retry := false
	if err == nil {
		retry = s.requeueFailedLocked()
	}
	s.mu.Unlock()
	s.emitStatus()
	if retry {
		s.wake()
	}
}

func (s *Syncer) observeSnapshot(snap Snapshot) {
	s.mu.Lock()
	s.gotSnap = true
	s.fromCache = snap.FromCache
	s.listenErr = nil
	retry := false
	if !snap.FromCache {
		s.writeErr = nil
		retry = s.requeueFailedLocked()
	}
	s.mu.Unlock()
	s.emitStatus()
	if retry {
		s.wake()
	}
}

func (s *Syncer) observeListenError(err error) {
	s.mu.Lock()
	s.listenErr = err
	s.mu.Unlock()
	s.logger.Error("Remote listener failed", slog.Any("error", err))
	s.emitStatus()
}

func (s *Syncer) requeueFailedLocked() bool {
	requeued := false
	for _, p := range s.pending {
		if p.state == opFailed {
			p.state = opQueued
			requeued = true
		}
	}
	return requeued
}

// trackLocked は操作を登録して通し番号を返す。同じIDの古い操作は置き換える。
func (s *Syncer) trackLocked(op Op, state opState) uint64 {
	s.seq++
	s.pending[op.ID] = &pendingOp{op: op, seq: s.seq, state: state}
	return s.seq
}

func (s *Syncer) pendingIDsLocked() []string {
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.pending[ids[i]].seq < s.pending[ids[j]].seq })
	return ids
}

func (s *Syncer) computeStatusLocked() (Status, error) {
	if s.listenErr != nil {
		return StatusOffline, s.listenErr
	}
	if s.writeErr != nil {
		return StatusOffline, s.writeErr
	}
	for _, p := range s.pending {
		if p.state == opFailed {
			return StatusOffline, nil
		}
	}
	if !s.gotSnap || s.fromCache {
		return StatusSyncing, nil
	}
	for _, p := range s.pending {
		if p.state != opAcked {
			return StatusSyncing, nil
		}
	}
	return StatusLive, nil
}

func (s *Syncer) emitStatus() {
	s.mu.Lock()
	st, err := s.computeStatusLocked()
	changed := st != s.status
	s.status = st
	listeners := append([]func(Status, error){}, s.onStatus...)
	s.mu.Unlock()
	if !changed {
		return
	}
	s.logger.Info("Sync status changed", slog.String("status", string(st)))
	for _, fn := range listeners {
		fn(st, err)
	}
}

func (r ChunkResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("chunk %d (%d ops): %v", r.Index, len(r.IDs), r.Err)
	}
	return fmt.Sprintf("chunk %d (%d ops): ok", r.Index, len(r.IDs))
}
