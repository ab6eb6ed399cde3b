package stats

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// MemberAmount is one source row attributed to a member.
type MemberAmount struct {
	MemberID uuid.UUID
	Amount   int64
}

// Repository reads the source rows the cached aggregates are derived from.
// It returns raw per-row amounts rather than SQL sums so the reconciler owns
// the arithmetic in one place.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ContributionRows(ctx context.Context, groupID uuid.UUID) ([]MemberAmount, error)
	PenaltyRows(ctx context.Context, groupID uuid.UUID) ([]MemberAmount, error)
	PayoutRows(ctx context.Context, groupID uuid.UUID) ([]MemberAmount, error)
	CompletedCycleCount(ctx context.Context, groupID uuid.UUID) (int, error)
	ActiveMemberCount(ctx context.Context, groupID uuid.UUID) (int, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a stats repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// ContributionRows lists every payment amount currently counting toward
// contribution totals: recorded, settled and late payments that were
// actually paid. A late row swept from pending never carries a paid_at,
// so it contributes nothing until the member records money against it.
func (r *repositoryImpl) ContributionRows(ctx context.Context, groupID uuid.UUID) ([]MemberAmount, error) {
	var rows []MemberAmount
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("member_id", "amount").
		Where("group_id = ? AND paid_at IS NOT NULL AND status IN ?", groupID, []enums.PaymentStatus{
			enums.PaymentStatusUnderReview,
			enums.PaymentStatusSettled,
			enums.PaymentStatusLate,
		}).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PenaltyRows lists non-waived penalty amounts. Paid penalties still count:
// only a waiver removes an amount from the totals.
func (r *repositoryImpl) PenaltyRows(ctx context.Context, groupID uuid.UUID) ([]MemberAmount, error) {
	var rows []MemberAmount
	err := r.db.WithContext(ctx).
		Model(&models.Penalty{}).
		Select("member_id", "amount").
		Where("group_id = ? AND is_waived = false", groupID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) PayoutRows(ctx context.Context, groupID uuid.UUID) ([]MemberAmount, error) {
	var rows []MemberAmount
	err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Select("beneficiary_id AS member_id", "amount").
		Where("group_id = ? AND status = ?", groupID, enums.PayoutStatusCompleted).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) CompletedCycleCount(ctx context.Context, groupID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Cycle{}).
		Where("group_id = ? AND status = ?", groupID, enums.CycleStatusCompleted).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repositoryImpl) ActiveMemberCount(ctx context.Context, groupID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("group_id = ? AND status = ?", groupID, enums.MemberStatusActive).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
