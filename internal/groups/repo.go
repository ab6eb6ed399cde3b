package groups

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Repository manages persistence for savings groups. The Add* helpers apply
// atomic deltas to the cached stats columns inside a caller-owned
// transaction; every payment, penalty and payout mutation pairs with exactly
// one of them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, group *models.Group) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
	ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Group, error)
	ListActive(ctx context.Context) ([]models.Group, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	QuorumPercent(ctx context.Context, groupID uuid.UUID) (int, error)
	OrganizerID(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error)
	AddCollected(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error
	AddPenaltyStats(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error
	AddDisbursed(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, amount int64) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a groups repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *repositoryImpl) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repositoryImpl) ListActive(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.GroupStatusActive).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repositoryImpl) QuorumPercent(ctx context.Context, groupID uuid.UUID) (int, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Select("quorum_percent").
		First(&group, "id = ?", groupID).Error
	if err != nil {
		return 0, err
	}
	return group.QuorumPercent, nil
}

func (r *repositoryImpl) OrganizerID(ctx context.Context, groupID uuid.UUID) (uuid.UUID, error) {
	var group models.Group
	err := r.db.WithContext(ctx).
		Select("organizer_id").
		First(&group, "id = ?", groupID).Error
	if err != nil {
		return uuid.Nil, err
	}
	return group.OrganizerID, nil
}

func (r *repositoryImpl) AddCollected(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", groupID).
		UpdateColumn("stats_total_collected", gorm.Expr("stats_total_collected + ?", delta)).Error
}

func (r *repositoryImpl) AddPenaltyStats(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", groupID).
		UpdateColumn("stats_total_penalties", gorm.Expr("stats_total_penalties + ?", delta)).Error
}

// AddDisbursed records a completed payout: the disbursed total grows by the
// payout amount and the completed cycle counter advances by one.
func (r *repositoryImpl) AddDisbursed(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, amount int64) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Group{}).
		Where("id = ?", groupID).
		UpdateColumns(map[string]any{
			"stats_total_disbursed":  gorm.Expr("stats_total_disbursed + ?", amount),
			"stats_completed_cycles": gorm.Expr("stats_completed_cycles + 1"),
		}).Error
}
