package members

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

// Repository manages persistence for group members. The AddContribution and
// AddPenaltyTotal helpers apply atomic deltas inside a caller-owned
// transaction; they back the rollup contract that pairs every payment or
// penalty mutation with the matching member totals adjustment.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	FindByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Member, error)
	FindByGroupAndUser(ctx context.Context, groupID, userID uuid.UUID) (*models.Member, error)
	CountByGroupAndStatus(ctx context.Context, groupID uuid.UUID, status enums.MemberStatus) (int, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SetTurnNumbers(ctx context.Context, assignment map[uuid.UUID]int) error
	AddContribution(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error
	AddPenaltyTotal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error
	UserIDForMember(ctx context.Context, memberID uuid.UUID) (uuid.UUID, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a members repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, member *models.Member) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	var members []models.Member
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("turn_number ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repositoryImpl) FindByGroupAndUser(ctx context.Context, groupID, userID uuid.UUID) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		First(&member, "group_id = ? AND user_id = ?", groupID, userID).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repositoryImpl) CountByGroupAndStatus(ctx context.Context, groupID uuid.UUID, status enums.MemberStatus) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("group_id = ? AND status = ?", groupID, status).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *repositoryImpl) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// SetTurnNumbers rewrites turn numbers in two phases (negate, then assign)
// so the unique (group_id, turn_number) index never sees a transient
// duplicate mid-swap.
func (r *repositoryImpl) SetTurnNumbers(ctx context.Context, assignment map[uuid.UUID]int) error {
	for memberID, turn := range assignment {
		err := r.db.WithContext(ctx).
			Model(&models.Member{}).
			Where("id = ?", memberID).
			UpdateColumn("turn_number", -turn).Error
		if err != nil {
			return err
		}
	}
	for memberID, turn := range assignment {
		err := r.db.WithContext(ctx).
			Model(&models.Member{}).
			Where("id = ?", memberID).
			UpdateColumn("turn_number", turn).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repositoryImpl) AddContribution(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", memberID).
		UpdateColumn("total_contributed", gorm.Expr("total_contributed + ?", delta)).Error
}

func (r *repositoryImpl) AddPenaltyTotal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error {
	conn := r.db
	if tx != nil {
		conn = tx
	}
	return conn.WithContext(ctx).
		Model(&models.Member{}).
		Where("id = ?", memberID).
		UpdateColumn("total_penalties", gorm.Expr("total_penalties + ?", delta)).Error
}

func (r *repositoryImpl) UserIDForMember(ctx context.Context, memberID uuid.UUID) (uuid.UUID, error) {
	var member models.Member
	err := r.db.WithContext(ctx).
		Select("user_id").
		First(&member, "id = ?", memberID).Error
	if err != nil {
		return uuid.Nil, err
	}
	return member.UserID, nil
}
