package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type timelineRecord struct {
	Name      string `gorm:"primaryKey;size:255"`
	Data      []byte
	Size      int64
	UpdatedAt time.Time
}

func (timelineRecord) TableName() string { return "timelines" }

// SQLStore keeps timelines in a SQLite table through GORM.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(dsn string, log *zap.Logger) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&timelineRecord{}); err != nil {
		return nil, fmt.Errorf("migrate timelines: %w", err)
	}
	log.Debug("sql store ready", zap.String("dsn", dsn))
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	rec := timelineRecord{Name: name, Data: data, Size: int64(len(data)), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *SQLStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	var rec timelineRecord
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

func (s *SQLStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&timelineRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]Info, error) {
	var recs []timelineRecord
	err := s.db.WithContext(ctx).
		Select("name", "size", "updated_at").
		Order("name").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]Info, len(recs))
	for i, r := range recs {
		out[i] = Info{Name: r.Name, Size: r.Size, Modified: r.UpdatedAt}
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
