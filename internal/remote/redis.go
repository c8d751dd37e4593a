package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"go_vocab_drill/internal/model"
)

// RedisBackend はハッシュ vocab:{account}:docs に JSON で保存し、
// 変更を vocab:{account}:changes チャンネルで通知する。
// サーバー時刻は TIME で取得する。
type RedisBackend struct {
	rdb    *goredis.Client
	logger *slog.Logger
}

func NewRedisBackend(ctx context.Context, addr string, logger *slog.Logger) (*RedisBackend, error) {
	if addr == "" {
		return nil, fmt.Errorf("NewRedisBackend: missing redis addr")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBackend{rdb: rdb, logger: logger.With(slog.String("backend", "redis"))}, nil
}

func docsKey(account string) string        { return "vocab:" + account + ":docs" }
func changesChannel(account string) string { return "vocab:" + account + ":changes" }

func (b *RedisBackend) Watch(ctx context.Context, account string, deliver func(Snapshot)) error {
	sub := b.rdb.Subscribe(ctx, changesChannel(account))
	defer sub.Close()

	// 購読開始を確認してから初回を読む
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}

	var last Snapshot
	reload := func() {
		snap, err := b.load(ctx, account)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// 読めなければ手元の最後の内容を未確認として配る
			b.logger.Warn("Failed to reload collection, delivering cached snapshot", slog.Any("error", err))
			last.FromCache = true
			last.ReadAt = time.Time{}
			deliver(last)
			return
		}
		last = snap
		deliver(snap)
	}

	reload()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok || m == nil {
				return fmt.Errorf("redis subscription closed")
			}
			reload()
		}
	}
}

func (b *RedisBackend) load(ctx context.Context, account string) (Snapshot, error) {
	at, err := b.rdb.Time(ctx).Result()
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := b.rdb.HGetAll(ctx, docsKey(account)).Result()
	if err != nil {
		return Snapshot{}, err
	}
	entries := make([]model.Entry, 0, len(raw))
	for id, payload := range raw {
		var d Document
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			b.logger.Warn("Skipping bad redis document", slog.String("id", id), slog.Any("error", err))
			continue
		}
		if e, ok := d.toEntry(id); ok {
			entries = append(entries, e)
		}
	}
	sortByUpdatedDesc(entries)
	return Snapshot{Entries: entries, ReadAt: at.UTC()}, nil
}

func (b *RedisBackend) Set(ctx context.Context, account string, e model.Entry) (time.Time, error) {
	at, err := b.commit(ctx, account, []Op{SetOp(e)})
	if err != nil {
		return time.Time{}, fmt.Errorf("RedisBackend.Set: %w", err)
	}
	return at, nil
}

func (b *RedisBackend) Delete(ctx context.Context, account string, id string) (time.Time, error) {
	at, err := b.commit(ctx, account, []Op{DeleteOp(id)})
	if err != nil {
		return time.Time{}, fmt.Errorf("RedisBackend.Delete: %w", err)
	}
	return at, nil
}

func (b *RedisBackend) Commit(ctx context.Context, account string, ops []Op) error {
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("RedisBackend.Commit: %d ops exceeds batch limit %d", len(ops), MaxBatchOps)
	}
	if _, err := b.commit(ctx, account, ops); err != nil {
		return fmt.Errorf("RedisBackend.Commit: %w", err)
	}
	return nil
}

// commit は MULTI/EXEC で書き込みと通知をまとめて実行する
func (b *RedisBackend) commit(ctx context.Context, account string, ops []Op) (time.Time, error) {
	at, err := b.rdb.Time(ctx).Result()
	if err != nil {
		return time.Time{}, err
	}
	at = at.UTC()

	key := docsKey(account)
	var sets []interface{}
	var dels []string
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			d := documentFromEntry(op.Entry)
			d.UpdatedAt = at
			raw, err := json.Marshal(d)
			if err != nil {
				return time.Time{}, err
			}
			sets = append(sets, op.ID, raw)
		case OpDelete:
			dels = append(dels, op.ID)
		}
	}

	_, err = b.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		if len(sets) > 0 {
			p.HSet(ctx, key, sets...)
		}
		if len(dels) > 0 {
			p.HDel(ctx, key, dels...)
		}
		p.Publish(ctx, changesChannel(account), len(ops))
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return at, nil
}

func (b *RedisBackend) ListIDs(ctx context.Context, account string) ([]string, error) {
	ids, err := b.rdb.HKeys(ctx, docsKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("RedisBackend.ListIDs: %w", err)
	}
	return ids, nil
}

func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
