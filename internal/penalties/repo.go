package penalties

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Repository manages persistence for penalty rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, penalty *models.Penalty) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Penalty, error)
	ExistsForPayment(ctx context.Context, paymentID uuid.UUID, penaltyType enums.PenaltyType) (bool, error)
	ListUnpaidByMember(ctx context.Context, groupID, memberID uuid.UUID) ([]models.Penalty, error)
	UnpaidTotalByMember(ctx context.Context, groupID, memberID uuid.UUID) (int64, error)
	MarkPaidForMember(ctx context.Context, groupID, memberID uuid.UUID, now time.Time) (int64, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a penalties repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, penalty *models.Penalty) error {
	return r.db.WithContext(ctx).Create(penalty).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Penalty, error) {
	var penalty models.Penalty
	if err := r.db.WithContext(ctx).First(&penalty, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &penalty, nil
}

func (r *repositoryImpl) ExistsForPayment(ctx context.Context, paymentID uuid.UUID, penaltyType enums.PenaltyType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Penalty{}).
		Where("payment_id = ? AND type = ?", paymentID, penaltyType).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) ListUnpaidByMember(ctx context.Context, groupID, memberID uuid.UUID) ([]models.Penalty, error) {
	var penalties []models.Penalty
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND member_id = ? AND is_paid = FALSE AND is_waived = FALSE", groupID, memberID).
		Order("created_at ASC").
		Find(&penalties).Error
	if err != nil {
		return nil, err
	}
	return penalties, nil
}

func (r *repositoryImpl) UnpaidTotalByMember(ctx context.Context, groupID, memberID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Penalty{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("group_id = ? AND member_id = ? AND is_paid = FALSE AND is_waived = FALSE", groupID, memberID).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repositoryImpl) MarkPaidForMember(ctx context.Context, groupID, memberID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Penalty{}).
		Where("group_id = ? AND member_id = ? AND is_paid = FALSE AND is_waived = FALSE", groupID, memberID).
		Updates(map[string]any{"is_paid": true, "paid_at": now})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Penalty{}).
		Where("id = ?", id).
		Updates(fields).Error
}
