package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"go_vocab_drill/internal/model"
)

// CSVMirror は1エントリ1行の区切りテキストファイルへのミラー
type CSVMirror struct {
	path   string
	logger *slog.Logger
}

func NewCSVMirror(path string, logger *slog.Logger) *CSVMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVMirror{path: path, logger: logger.With(slog.String("mirror", "csv"), slog.String("path", path))}
}

// Load はファイルを読み込みます。ファイルが存在しない場合は空を返す。
func (m *CSVMirror) Load(ctx context.Context) ([]model.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.logger.Info("Mirror file not found, starting empty")
			return []model.Entry{}, nil
		}
		return nil, fmt.Errorf("CSVMirror.Load: %w", err)
	}
	entries, err := DecodeCSV(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("CSVMirror.Load: %w", err)
	}
	m.logger.Debug("Mirror loaded", slog.Int("count", len(entries)))
	return entries, nil
}

// Save は一時ファイルに書き出してから rename するので、途中で失敗しても既存ファイルは壊れない。
func (m *CSVMirror) Save(ctx context.Context, entries []model.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, entries); err != nil {
		return fmt.Errorf("CSVMirror.Save: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("CSVMirror.Save: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".vocab-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("CSVMirror.Save: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("CSVMirror.Save write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("CSVMirror.Save sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("CSVMirror.Save close: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		cleanup()
		return fmt.Errorf("CSVMirror.Save rename: %w", err)
	}
	m.logger.Debug("Mirror saved", slog.Int("count", len(entries)))
	return nil
}
