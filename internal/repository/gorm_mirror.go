package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go_vocab_drill/internal/model"

	"gorm.io/gorm"
)

// EntryRecord はミラーテーブルの1行
type EntryRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)"`
	Position    int       `gorm:"not null;index"` // メモリ上の並び順
	Thai        string    `gorm:"not null"`
	Burmese     *string   `gorm:"default:null"`
	Count       int       `gorm:"not null;default:0"`
	Status      string    `gorm:"type:varchar(16);not null;default:queue"`
	Category    *string   `gorm:"default:null;index"`
	Explanation *string   `gorm:"column:ai_explanation;default:null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

func (EntryRecord) TableName() string {
	return "vocab_entries"
}

func recordFromEntry(e model.Entry, pos int) EntryRecord {
	return EntryRecord{
		ID:          e.ID,
		Position:    pos,
		Thai:        e.Thai,
		Burmese:     e.Burmese,
		Count:       e.Count,
		Status:      string(e.Status),
		Category:    e.Category,
		Explanation: e.Explanation,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (r EntryRecord) toEntry() model.Entry {
	return model.Entry{
		ID:          r.ID,
		Thai:        r.Thai,
		Burmese:     r.Burmese,
		Status:      model.ParseStatusOrDefault(r.Status),
		Category:    r.Category,
		Explanation: r.Explanation,
		UpdatedAt:   r.UpdatedAt,
	}.WithCount(r.Count)
}

// GormMirror はSQLテーブルへのミラー (sqlite / postgres)
type GormMirror struct {
	db        *gorm.DB
	logger    *slog.Logger
	batchSize int
}

// NewGormMirror はテーブルをマイグレーションしてミラーを返します。
func NewGormMirror(db *gorm.DB, logger *slog.Logger) (*GormMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&EntryRecord{}); err != nil {
		return nil, fmt.Errorf("NewGormMirror: %w", err)
	}
	return &GormMirror{db: db, logger: logger.With(slog.String("mirror", "gorm")), batchSize: 200}, nil
}

func (m *GormMirror) Load(ctx context.Context) ([]model.Entry, error) {
	var records []EntryRecord
	result := m.db.WithContext(ctx).Order("position ASC").Find(&records)
	if result.Error != nil {
		m.logger.Error("Error loading mirror from DB", slog.Any("error", result.Error))
		return nil, fmt.Errorf("GormMirror.Load: %w", result.Error)
	}
	entries := make([]model.Entry, 0, len(records))
	for _, r := range records {
		if r.Thai == "" {
			continue
		}
		entries = append(entries, r.toEntry())
	}
	return entries, nil
}

// Save はトランザクション内で全件を入れ替えます。
func (m *GormMirror) Save(ctx context.Context, entries []model.Entry) error {
	records := make([]EntryRecord, 0, len(entries))
	for i, e := range entries {
		records = append(records, recordFromEntry(e, i))
	}
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&EntryRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, m.batchSize).Error
	})
	if err != nil {
		m.logger.Error("Error saving mirror to DB", slog.Any("error", err), slog.Int("count", len(entries)))
		return fmt.Errorf("GormMirror.Save: %w", err)
	}
	return nil
}
