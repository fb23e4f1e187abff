package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pharmaguard/core/dtos"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("analysis not found")

// Analysis is a stored analyze request together with where its
// side artefacts live, so a purge can find them again.
type Analysis struct {
	ID        string
	PatientID string
	VCFHash   string
	CacheKey  string
	BlobKey   string
	CreatedAt time.Time
	Results   []dtos.DrugResult
}

type AnalyzeRepo interface {
	CreateAnalysis(ctx context.Context, a Analysis) error
	GetAnalysis(ctx context.Context, id string) (Analysis, error)
	DeleteAnalysis(ctx context.Context, id string) error
}

// In-memory store, used for tests and DB_DRIVER=memory.

type memAnalyzeRepo struct {
	store map[string]Analysis
	mu    sync.RWMutex
}

func NewMemAnalyzeRepo() AnalyzeRepo {
	return &memAnalyzeRepo{
		store: make(map[string]Analysis),
	}
}

func (r *memAnalyzeRepo) CreateAnalysis(_ context.Context, a Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store[a.ID] = a
	return nil
}

func (r *memAnalyzeRepo) GetAnalysis(_ context.Context, id string) (Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, exists := r.store[id]
	if !exists {
		return Analysis{}, ErrNotFound
	}
	return a, nil
}

func (r *memAnalyzeRepo) DeleteAnalysis(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.store[id]; !exists {
		return ErrNotFound
	}
	delete(r.store, id)
	return nil
}

// SQL store.

type analysisRow struct {
	ID        string    `gorm:"column:id;primaryKey;size:36"`
	PatientID string    `gorm:"column:patient_id;index"`
	VCFHash   string    `gorm:"column:vcf_sha256;size:64"`
	CacheKey  string    `gorm:"column:cache_key"`
	BlobKey   string    `gorm:"column:blob_key"`
	Payload   string    `gorm:"column:payload;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (analysisRow) TableName() string { return "analyses" }

type gormAnalyzeRepo struct {
	db *gorm.DB
}

// OpenDB connects to sqlite or postgres and migrates the analyses table.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&analysisRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func NewAnalyzeRepo(db *gorm.DB) (AnalyzeRepo, error) {
	if db == nil {
		return nil, errors.New("nil gorm DB passed to repository")
	}
	return &gormAnalyzeRepo{db: db}, nil
}

func (r *gormAnalyzeRepo) CreateAnalysis(ctx context.Context, a Analysis) error {
	payload, err := json.Marshal(a.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	row := analysisRow{
		ID:        a.ID,
		PatientID: a.PatientID,
		VCFHash:   a.VCFHash,
		CacheKey:  a.CacheKey,
		BlobKey:   a.BlobKey,
		Payload:   string(payload),
		CreatedAt: a.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *gormAnalyzeRepo) GetAnalysis(ctx context.Context, id string) (Analysis, error) {
	var row analysisRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}

	var results []dtos.DrugResult
	if err := json.Unmarshal([]byte(row.Payload), &results); err != nil {
		return Analysis{}, fmt.Errorf("decode results for %s: %w", id, err)
	}
	return Analysis{
		ID:        row.ID,
		PatientID: row.PatientID,
		VCFHash:   row.VCFHash,
		CacheKey:  row.CacheKey,
		BlobKey:   row.BlobKey,
		CreatedAt: row.CreatedAt,
		Results:   results,
	}, nil
}

func (r *gormAnalyzeRepo) DeleteAnalysis(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&analysisRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
