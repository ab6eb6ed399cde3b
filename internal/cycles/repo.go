package cycles

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// StatusTally is one row of the per-status payment aggregate for a cycle.
type StatusTally struct {
	Status enums.PaymentStatus
	Count  int
	Amount int64
}

// Repository manages persistence for cycle rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, cycle *models.Cycle) error
	CreateBatch(ctx context.Context, cycles []models.Cycle) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	FindByGroupAndNumber(ctx context.Context, groupID uuid.UUID, number int) (*models.Cycle, error)
	ListActive(ctx context.Context) ([]models.Cycle, error)
	ListOverdue(ctx context.Context, before time.Time) ([]models.Cycle, error)
	DeleteByGroup(ctx context.Context, groupID uuid.UUID) error
	PaymentTallies(ctx context.Context, cycleID uuid.UUID) ([]StatusTally, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a cycles repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, cycle *models.Cycle) error {
	return r.db.WithContext(ctx).Create(cycle).Error
}

func (r *repositoryImpl) CreateBatch(ctx context.Context, cycles []models.Cycle) error {
	if len(cycles) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&cycles).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	var cycle models.Cycle
	if err := r.db.WithContext(ctx).First(&cycle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cycle, nil
}

func (r *repositoryImpl) FindByGroupAndNumber(ctx context.Context, groupID uuid.UUID, number int) (*models.Cycle, error) {
	var cycle models.Cycle
	err := r.db.WithContext(ctx).
		First(&cycle, "group_id = ? AND cycle_number = ?", groupID, number).Error
	if err != nil {
		return nil, err
	}
	return &cycle, nil
}

func (r *repositoryImpl) ListActive(ctx context.Context) ([]models.Cycle, error) {
	var cycles []models.Cycle
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.CycleStatusActive).
		Order("created_at ASC").
		Find(&cycles).Error
	if err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *repositoryImpl) ListOverdue(ctx context.Context, before time.Time) ([]models.Cycle, error) {
	var cycles []models.Cycle
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date < ?", enums.CycleStatusActive, before).
		Order("end_date ASC").
		Find(&cycles).Error
	if err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *repositoryImpl) DeleteByGroup(ctx context.Context, groupID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Delete(&models.Cycle{}).Error
}

func (r *repositoryImpl) PaymentTallies(ctx context.Context, cycleID uuid.UUID) ([]StatusTally, error) {
	var tallies []StatusTally
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("cycle_id = ?", cycleID).
		Group("status").
		Scan(&tallies).Error
	if err != nil {
		return nil, err
	}
	return tallies, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Cycle{}).
		Where("id = ?", id).
		Updates(fields).Error
}
