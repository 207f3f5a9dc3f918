package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	runDomain "github.com/Kilat-Pet-Delivery/service-tracking/internal/domain/run"
	"github.com/Kilat-Pet-Delivery/service-tracking/internal/platform/domain"
	"gorm.io/gorm"
)

// RunRecordModel is the GORM model for the run_records table.
type RunRecordModel struct {
	ID       int64   `gorm:"primaryKey;autoIncrement"`
	Distance float64 `gorm:"not null;check:chk_run_records_distance,distance >= 0"`
	Time     string  `gorm:"not null;size:32"`
	Date     string  `gorm:"not null;size:40"`
}

// TableName returns the table name for the GORM model.
func (RunRecordModel) TableName() string {
	return "run_records"
}

// GormRunRepository is the GORM-based implementation of run.Repository.
type GormRunRepository struct {
	db      *gorm.DB
	gate    initGate
	writeMu sync.Mutex
}

// NewGormRunRepository creates a new GormRunRepository. Initialize must be
// called before use.
func NewGormRunRepository(db *gorm.DB) *GormRunRepository {
	return &GormRunRepository{db: db}
}

// Initialize creates the run_records table if it is missing.
func (r *GormRunRepository) Initialize(ctx context.Context) error {
	migrator := r.db.WithContext(ctx).Migrator()
	if !migrator.HasTable(&RunRecordModel{}) {
		if err := migrator.CreateTable(&RunRecordModel{}); err != nil {
			r.gate.record(err)
			return domain.NewStorageInitError("failed to create run_records table", err)
		}
	}
	r.gate.record(nil)
	return nil
}

// Create inserts a new run record stamped with the current time.
func (r *GormRunRepository) Create(ctx context.Context, distanceKilometers float64, duration string) (int64, error) {
	if err := r.gate.check(); err != nil {
		return 0, err
	}
	if err := runDomain.ValidateNew(distanceKilometers, duration); err != nil {
		return 0, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	model := RunRecordModel{
		Distance: distanceKilometers,
		Time:     duration,
		Date:     runDomain.FormatTimestamp(time.Now()),
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, domain.NewStorageError("create run record", err)
	}
	return model.ID, nil
}

// List returns every run record ordered by id.
func (r *GormRunRepository) List(ctx context.Context) ([]runDomain.RunRecord, error) {
	if err := r.gate.check(); err != nil {
		return nil, err
	}

	var models []RunRecordModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, domain.NewStorageError("list run records", err)
	}

	records := make([]runDomain.RunRecord, len(models))
	for i, m := range models {
		rec, err := toDomainRunRecord(&m)
		if err != nil {
			return nil, domain.NewStorageError("list run records", err)
		}
		records[i] = rec
	}
	return records, nil
}

// Ping checks that the database is reachable.
func (r *GormRunRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (r *GormRunRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func toDomainRunRecord(m *RunRecordModel) (runDomain.RunRecord, error) {
	recordedAt, err := runDomain.ParseTimestamp(m.Date)
	if err != nil {
		return runDomain.RunRecord{}, fmt.Errorf("failed to parse date of run record %d: %w", m.ID, err)
	}
	return runDomain.ReconstructRunRecord(m.ID, m.Distance, m.Time, recordedAt), nil
}
