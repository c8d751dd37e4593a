// Package persist は連続した変更をまとめて1回の永続化書き込みにするライター。
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/repository"
)

// DefaultDelay は静止期間のデフォルト
const DefaultDelay = 300 * time.Millisecond

// Writer はスナップショット単位のデバウンス書き込みを行います。
// 予約済みの書き込みは新しい Schedule で取り消され、最後のスナップショットだけが書かれる。
type Writer struct {
	mirror repository.Mirror
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending []model.Entry
	hasPend bool
	gen     uint64 // Schedule ごとに増える世代番号
	closed  bool

	// writeMu は実際の書き込みを直列化する。written は書き込み済みの最新世代。
	writeMu sync.Mutex
	written uint64

	errMu   sync.Mutex
	lastErr error
	writes  int
}

func NewWriter(mirror repository.Mirror, delay time.Duration, logger *slog.Logger) *Writer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		mirror: mirror,
		delay:  delay,
		logger: logger.With(slog.String("component", "persist.Writer")),
	}
}

// Schedule は現在の全件スナップショットを受け取り、静止期間後の書き込みを予約します。
// 未実行の予約は取り消される。
func (w *Writer) Schedule(snapshot []model.Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("Schedule called after close, ignoring", slog.Int("count", len(snapshot)))
		return
	}
	w.pending = model.CloneEntries(snapshot)
	w.hasPend = true
	w.gen++
	gen := w.gen
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() { w.fire(gen) })
}

func (w *Writer) fire(gen uint64) {
	w.mu.Lock()
	// Stop が間に合わなかった古いタイマーは無視
	if gen != w.gen || !w.hasPend {
		w.mu.Unlock()
		return
	}
	snap := w.pending
	w.pending = nil
	w.hasPend = false
	w.timer = nil
	w.mu.Unlock()

	_ = w.write(context.Background(), gen, snap)
}

// FlushNow は予約中のタイマーを取り消し、その場で同期的に書き込みます。
// アプリのバックグラウンド移行・終了時に呼ぶ。予約がなければ何もしない。
func (w *Writer) FlushNow(ctx context.Context) error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if !w.hasPend {
		w.mu.Unlock()
		return nil
	}
	snap := w.pending
	gen := w.gen
	w.pending = nil
	w.hasPend = false
	w.mu.Unlock()

	return w.write(ctx, gen, snap)
}

// Close は保留中の書き込みをフラッシュして以降の予約を受け付けなくします。
func (w *Writer) Close(ctx context.Context) error {
	err := w.FlushNow(ctx)
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	return err
}

// Pending は未書き込みのスナップショットがあるかを返します。
func (w *Writer) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasPend
}

// LastError は直近の書き込みが失敗していればそのエラーを返します (成功すると nil に戻る)。
func (w *Writer) LastError() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.lastErr
}

// Writes は成功した書き込み回数を返します。
func (w *Writer) Writes() int {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writes
}

func (w *Writer) write(ctx context.Context, gen uint64, snap []model.Entry) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	// より新しい世代が既に書かれていれば古いスナップショットは捨てる
	if gen < w.written {
		return nil
	}

	start := time.Now()
	err := w.mirror.Save(ctx, snap)
	w.errMu.Lock()
	if err != nil {
		// メモリ上の状態は巻き戻さない
		w.lastErr = &model.PersistenceError{Op: "save", Err: err}
		err = w.lastErr
	} else {
		w.lastErr = nil
		w.writes++
		w.written = gen
	}
	w.errMu.Unlock()

	if err != nil {
		w.logger.Error("Durable write failed", slog.Any("error", err), slog.Int("count", len(snap)))
		return err
	}
	w.logger.Debug("Durable write completed", slog.Int("count", len(snap)), slog.Duration("took", time.Since(start)))
	return nil
}
