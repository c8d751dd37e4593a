package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go_vocab_drill/internal/model"
)

// FirestoreBackend は users/{account}/vocab コレクションと同期する。
// サーバー向けSDKはローカルキャッシュを持たないため FromCache は常に false。
type FirestoreBackend struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewFirestoreBackend(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*FirestoreBackend, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewFirestoreBackend: missing project id")
	}
	if logger == nil {
		logger = slog.Default()
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewFirestoreBackend: %w", err)
	}
	return &FirestoreBackend{
		client: client,
		logger: logger.With(slog.String("backend", "firestore")),
	}, nil
}

func (b *FirestoreBackend) collection(account string) *firestore.CollectionRef {
	return b.client.Collection("users").Doc(account).Collection("vocab")
}

func (b *FirestoreBackend) Watch(ctx context.Context, account string, deliver func(Snapshot)) error {
	it := b.collection(account).OrderBy("updatedAt", firestore.Desc).Snapshots(ctx)
	defer it.Stop()
	for {
		qs, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return nil
			}
			return fmt.Errorf("FirestoreBackend.Watch: %w", err)
		}
		docs, err := qs.Documents.GetAll()
		if err != nil {
			return fmt.Errorf("FirestoreBackend.Watch: %w", err)
		}
		entries := make([]model.Entry, 0, len(docs))
		for _, ds := range docs {
			var d Document
			if err := ds.DataTo(&d); err != nil {
				b.logger.Warn("Skipping undecodable document", slog.String("id", ds.Ref.ID), slog.Any("error", err))
				continue
			}
			if e, ok := d.toEntry(ds.Ref.ID); ok {
				entries = append(entries, e)
			}
		}
		deliver(Snapshot{Entries: entries, ReadAt: qs.ReadTime})
	}
}

// writeData は updatedAt をサーバー時刻で上書きする書き込み内容
func writeData(e model.Entry) map[string]interface{} {
	return map[string]interface{}{
		"thai":           e.Thai,
		"burmese":        e.Burmese,
		"count":          e.Count,
		"status":         string(e.Status),
		"category":       e.Category,
		"ai_explanation": e.Explanation,
		"updatedAt":      firestore.ServerTimestamp,
	}
}

func (b *FirestoreBackend) Set(ctx context.Context, account string, e model.Entry) (time.Time, error) {
	wr, err := b.collection(account).Doc(e.ID).Set(ctx, writeData(e))
	if err != nil {
		return time.Time{}, fmt.Errorf("FirestoreBackend.Set: %w", err)
	}
	return wr.UpdateTime, nil
}

func (b *FirestoreBackend) Delete(ctx context.Context, account string, id string) (time.Time, error) {
	wr, err := b.collection(account).Doc(id).Delete(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("FirestoreBackend.Delete: %w", err)
	}
	return wr.UpdateTime, nil
}

// Commit はトランザクション1回で全操作を適用する
func (b *FirestoreBackend) Commit(ctx context.Context, account string, ops []Op) error {
	if len(ops) > MaxBatchOps {
		return fmt.Errorf("FirestoreBackend.Commit: %d ops exceeds batch limit %d", len(ops), MaxBatchOps)
	}
	coll := b.collection(account)
	err := b.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, op := range ops {
			ref := coll.Doc(op.ID)
			var err error
			switch op.Kind {
			case OpSet:
				err = tx.Set(ref, writeData(op.Entry))
			case OpDelete:
				err = tx.Delete(ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("FirestoreBackend.Commit: %w", err)
	}
	return nil
}

func (b *FirestoreBackend) ListIDs(ctx context.Context, account string) ([]string, error) {
	it := b.collection(account).Select().Documents(ctx)
	defer it.Stop()
	var ids []string
	for {
		ds, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FirestoreBackend.ListIDs: %w", err)
		}
		ids = append(ids, ds.Ref.ID)
	}
	return ids, nil
}

func (b *FirestoreBackend) Close() error {
	return b.client.Close()
}
