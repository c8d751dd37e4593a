package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(t.TempDir(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDailyTarget, cfg.App.DailyTarget)
	assert.Equal(t, "2024-05-10", cfg.App.StartDate, "未指定なら読み込んだ日")
	assert.Equal(t, MirrorCSV, cfg.Storage.Mirror)
	assert.Equal(t, BackendNone, cfg.Remote.Backend)
	assert.Equal(t, 450, cfg.Remote.BatchSize)
	assert.Equal(t, 300*time.Millisecond, cfg.Debounce())
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), cfg.StartDate())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
app:
  daily_target: 5000
  start_date: "2024-01-01"
  account_token: "acct-1"
storage:
  mirror: SQLite
  database_url: "vocab.db"
remote:
  backend: memory
  batch_size: 200
`)
	t.Setenv("APP_REMOTE_BATCH_SIZE", "100")

	cfg, err := Load(dir, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.App.DailyTarget)
	assert.Equal(t, MirrorSQLite, cfg.Storage.Mirror, "小文字に正規化")
	assert.Equal(t, BackendMemory, cfg.Remote.Backend)
	assert.Equal(t, 100, cfg.Remote.BatchSize, "環境変数が優先")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"異常系: 目標が0", "app:\n  daily_target: 0\n"},
		{"異常系: 開始日の形式", "app:\n  start_date: \"2024/01/01\"\n"},
		{"異常系: バッチサイズ上限超え", "remote:\n  batch_size: 451\n"},
		{"異常系: 不明なミラー", "storage:\n  mirror: excel\n"},
		{"異常系: postgres にURLなし", "storage:\n  mirror: postgres\n"},
		{"異常系: firestore にプロジェクトなし", "remote:\n  backend: firestore\n"},
		{"異常系: 不明なバックエンド", "remote:\n  backend: dynamo\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), fixedNow)
			assert.Error(t, err)
		})
	}
}
