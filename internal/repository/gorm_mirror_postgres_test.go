package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"go_vocab_drill/internal/model"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// startPostgres はコンテナで postgres を起動し、NewDB で接続したDBを返します。
// Docker に接続できない環境ではスキップする。
func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("short モードでは postgres コンテナを起動しない")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("Docker pool を作成できません: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("Docker に接続できません: %v", err)
	}
	pool.MaxWait = 120 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=user",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=vocab_drill",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "postgres コンテナを起動できません")
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("コンテナを削除できません: %v", err)
		}
	})
	// テストが異常終了してもコンテナを残さない
	require.NoError(t, resource.Expire(300))

	// devcontainer からは host.docker.internal 経由で接続する
	host := os.Getenv("TEST_DOCKER_HOST")
	if host == "" {
		host = "localhost"
	}
	url := fmt.Sprintf("postgres://user:secret@%s:%s/vocab_drill?sslmode=disable", host, resource.GetPort("5432/tcp"))

	var db *gorm.DB
	err = pool.Retry(func() error {
		var openErr error
		db, openErr = NewDB(url, discardLogger())
		return openErr
	})
	require.NoError(t, err, "postgres に接続できません")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGormMirror_Postgres(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections, "postgres はプール設定を使う")

	m, err := NewGormMirror(db, discardLogger())
	require.NoError(t, err)

	stamp := time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC)
	fresh := model.NewEntry("ใหม่", nil, nil)
	fresh.UpdatedAt = stamp
	entries := append([]model.Entry{fresh}, sampleEntries()...)

	t.Run("正常系: 並び順と任意項目を保って読み戻す", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, entries))
		got, err := m.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 4)
		assert.Equal(t, fresh.ID, got[0].ID, "uuid のIDが入る")
		assert.True(t, got[0].UpdatedAt.Equal(stamp), "タイムスタンプは時刻として一致する")
		assert.Nil(t, got[0].Burmese)
		assert.Equal(t, "မင်္ဂလာပါ", got[1].SecondaryText())
		assert.Equal(t, model.StatusDrill, got[1].Status)
		assert.Equal(t, "rice\n(noun)", *got[3].Explanation)
	})

	t.Run("正常系: 保存のたびに全件を入れ替える", func(t *testing.T) {
		require.NoError(t, m.Save(ctx, entries[2:]))
		got, err := m.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, entries[2].ID, got[0].ID)

		require.NoError(t, m.Save(ctx, nil))
		got, err = m.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("異常系: キャンセル済みのコンテキスト", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := m.Save(cctx, entries)
		require.Error(t, err)
		got, err := m.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got, "失敗した保存は反映されない")
	})
}
