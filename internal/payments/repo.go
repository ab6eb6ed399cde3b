package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Repository manages persistence for payment rows. StampLateFee is the
// write path the penalty service uses to mirror an applied fee onto the
// payment inside the caller's transaction.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	CreateBatch(ctx context.Context, payments []models.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByMemberAndCycle(ctx context.Context, memberID, cycleID uuid.UUID) (*models.Payment, error)
	ListByCycleAndStatuses(ctx context.Context, cycleID uuid.UUID, statuses []enums.PaymentStatus) ([]models.Payment, error)
	DeleteByGroup(ctx context.Context, groupID uuid.UUID) error
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	StampLateFee(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, fee int64, daysLate int) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a payments repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repositoryImpl) CreateBatch(ctx context.Context, payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&payments, 200).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) FindByMemberAndCycle(ctx context.Context, memberID, cycleID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		First(&payment, "member_id = ? AND cycle_id = ?", memberID, cycleID).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repositoryImpl) ListByCycleAndStatuses(ctx context.Context, cycleID uuid.UUID, statuses []enums.PaymentStatus) ([]models.Payment, error) {
	var payments []models.Payment
	query := r.db.WithContext(ctx).Where("cycle_id = ?", cycleID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if err := query.Order("due_date ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repositoryImpl) DeleteByGroup(ctx context.Context, groupID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Delete(&models.Payment{}).Error
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repositoryImpl) StampLateFee(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, fee int64, daysLate int) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]any{
			"late_fee":  fee,
			"is_late":   true,
			"days_late": daysLate,
		}).Error
}
