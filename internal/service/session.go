// internal/service/session.go
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go_vocab_drill/internal/explain"
	"go_vocab_drill/internal/model"
	"go_vocab_drill/internal/persist"
	"go_vocab_drill/internal/progress"
	"go_vocab_drill/internal/remote"
	"go_vocab_drill/internal/repository"
	"go_vocab_drill/internal/store"
)

type SessionOptions struct {
	Mirror    repository.Mirror
	Seed      store.SeedFunc
	Debounce  time.Duration
	Backend   remote.Backend // nil ならローカルのみ
	Account   string
	BatchSize int
	Explainer explain.Explainer
	Plan      progress.Plan
	Logger    *slog.Logger
}

// Session はセッション中のコンポーネント一式を所有します。
// Start で読み込みと購読を開始し、Close で購読を止めて保留中の書き込みをフラッシュする。
type Session struct {
	Store      *store.Store
	Writer     *persist.Writer
	Syncer     *remote.Syncer
	Controller *Controller

	logger      *slog.Logger
	snaps       chan remote.Snapshot
	done        chan struct{}
	wg          sync.WaitGroup
	unsubscribe func()
	bootstrap   bool
	closeOnce   sync.Once
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Mirror == nil {
		return nil, errors.New("NewSession: mirror required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	writer := persist.NewWriter(opts.Mirror, opts.Debounce, logger)
	st := store.New(store.Options{Mirror: opts.Mirror, Scheduler: writer, Seed: opts.Seed, Logger: logger})

	s := &Session{
		Store:  st,
		Writer: writer,
		logger: logger.With(slog.String("component", "service.Session")),
		snaps:  make(chan remote.Snapshot, 1),
		done:   make(chan struct{}),
	}

	var bulk BulkSyncer
	if opts.Backend != nil {
		syncer, err := remote.NewSyncer(opts.Backend, remote.Options{
			Account:   opts.Account,
			BatchSize: opts.BatchSize,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		s.Syncer = syncer
		st.SetRemote(syncer)
		bulk = syncer
	}
	s.Controller = NewController(st, writer, bulk, opts.Explainer, opts.Plan, logger)
	return s, nil
}

// Start はローカルミラーから読み込み、リモート構成なら購読を開始します。
func (s *Session) Start(ctx context.Context) error {
	entries := s.Store.Load(ctx)
	if s.Syncer == nil {
		s.logger.Info("Session started (local only)", slog.Int("count", len(entries)))
		return nil
	}

	s.bootstrap = true
	s.wg.Add(1)
	go s.reconcile()
	s.unsubscribe = s.Syncer.Subscribe(s.offer, func(err error) {
		s.logger.Warn("Remote listener error", slog.Any("error", err))
	})
	s.logger.Info("Session started", slog.Int("count", len(entries)))
	return nil
}

// offer は最新のスナップショットだけを残して受け渡す。購読側をブロックしない。
func (s *Session) offer(snap remote.Snapshot) {
	for {
		select {
		case s.snaps <- snap:
			return
		default:
		}
		select {
		case <-s.snaps:
		default:
		}
	}
}

// reconcile はリモートのスナップショットをストアへ反映する唯一の経路
func (s *Session) reconcile() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.snaps:
			if s.bootstrap && !snap.FromCache {
				s.bootstrap = false
				if len(snap.Entries) == 0 && s.Store.Len() > 0 {
					s.uploadLocal()
					continue
				}
			}
			// 重ね合わせはストアのロック内で行う (store → syncer の順でロックを取る)
			s.Store.ApplyRemoteFunc(func() []model.Entry { return s.Syncer.Overlay(snap) })
		}
	}
}

// uploadLocal は空のリモートに手元のコレクションを初回アップロードする
func (s *Session) uploadLocal() {
	local := s.Store.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.Syncer.ImportMany(ctx, local); err != nil {
		s.logger.Error("Initial upload to empty remote failed", slog.Any("error", err), slog.Int("count", len(local)))
		return
	}
	s.logger.Info("Uploaded local collection to empty remote", slog.Int("count", len(local)))
}

// Close は購読を解除し、保留中の書き込みをフラッシュしてから閉じます。何度呼んでもよい。
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		close(s.done)
		s.wg.Wait()

		err = s.Writer.Close(ctx)
		if s.Syncer != nil {
			if ferr := s.Syncer.Flush(ctx); ferr != nil {
				s.logger.Warn("Outbox not drained before close", slog.Any("error", ferr))
			}
			if cerr := s.Syncer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		s.logger.Info("Session closed")
	})
	return err
}
