package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/groups"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
	"github.com/chitcircle/chitcircle-backend/pkg/money"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Drift is one cached aggregate that no longer matches its source rows.
type Drift struct {
	Entity   string
	ID       uuid.UUID
	Field    string
	Cached   int64
	Computed int64
}

// Report is the outcome of a reconciliation pass over one group.
type Report struct {
	GroupID uuid.UUID
	Drifts  []Drift
}

// Clean reports whether every cached aggregate matched its recomputation.
func (r *Report) Clean() bool { return len(r.Drifts) == 0 }

// Service recomputes the cached member and group aggregates from source
// rows. Check only reports drift; Reconcile writes the recomputed values
// back for every drifted field.
type Service interface {
	Check(ctx context.Context, groupID uuid.UUID) (*Report, error)
	Reconcile(ctx context.Context, groupID uuid.UUID) (*Report, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	groups  groups.Repository
	members members.Repository
	logg    *logger.Logger
}

// NewService wires the stats reconciler with its collaborators.
func NewService(repo Repository, tx txRunner, groupRepo groups.Repository, memberRepo members.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if groupRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "groups repository required")
	}
	if memberRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, tx: tx, groups: groupRepo, members: memberRepo, logg: logg}, nil
}

type computed struct {
	memberContributed map[uuid.UUID]int64
	memberPenalties   map[uuid.UUID]int64
	memberPayout      map[uuid.UUID]int64
	groupCollected    int64
	groupDisbursed    int64
	groupPenalties    int64
	completedCycles   int
	activeMembers     int
}

func recompute(ctx context.Context, repo Repository, groupID uuid.UUID) (*computed, error) {
	contributions, err := repo.ContributionRows(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load contribution rows")
	}
	penalties, err := repo.PenaltyRows(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load penalty rows")
	}
	payouts, err := repo.PayoutRows(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout rows")
	}
	completedCycles, err := repo.CompletedCycleCount(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count completed cycles")
	}
	activeMembers, err := repo.ActiveMemberCount(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active members")
	}

	result := &computed{
		memberContributed: sumByMember(contributions),
		memberPenalties:   sumByMember(penalties),
		memberPayout:      sumByMember(payouts),
		completedCycles:   completedCycles,
		activeMembers:     activeMembers,
	}
	result.groupCollected = sumAll(contributions)
	result.groupDisbursed = sumAll(payouts)
	result.groupPenalties = sumAll(penalties)
	return result, nil
}

func (s *service) Check(ctx context.Context, groupID uuid.UUID) (*Report, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}
	group, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
	}
	roster, err := s.members.FindByGroup(ctx, groupID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load members")
	}
	values, err := recompute(ctx, s.repo, groupID)
	if err != nil {
		return nil, err
	}
	return buildReport(group, roster, values), nil
}

// Reconcile recomputes inside one transaction and writes back every drifted
// field, so a torn read cannot half-correct a group.
func (s *service) Reconcile(ctx context.Context, groupID uuid.UUID) (*Report, error) {
	if groupID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "group id required")
	}

	var report *Report
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		groupRepo := s.groups.WithTx(tx)
		memberRepo := s.members.WithTx(tx)

		group, err := groupRepo.FindByID(ctx, groupID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "group not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load group")
		}
		roster, err := memberRepo.FindByGroup(ctx, groupID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load members")
		}
		values, err := recompute(ctx, s.repo.WithTx(tx), groupID)
		if err != nil {
			return err
		}
		report = buildReport(group, roster, values)
		if report.Clean() {
			return nil
		}

		memberFields := make(map[uuid.UUID]map[string]any)
		groupFields := make(map[string]any)
		for _, drift := range report.Drifts {
			if drift.Entity == "group" {
				groupFields[drift.Field] = drift.Computed
				continue
			}
			fields, ok := memberFields[drift.ID]
			if !ok {
				fields = make(map[string]any)
				memberFields[drift.ID] = fields
			}
			fields[drift.Field] = drift.Computed
		}
		for memberID, fields := range memberFields {
			if err := memberRepo.Update(ctx, memberID, fields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write member totals")
			}
		}
		if len(groupFields) > 0 {
			if err := groupRepo.Update(ctx, groupID, groupFields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write group stats")
			}
		}

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"group_id": groupID.String(),
			"drifts":   len(report.Drifts),
		})
		s.logg.Warn(logCtx, "reconciled drifted aggregates")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func buildReport(group *models.Group, roster []models.Member, values *computed) *Report {
	report := &Report{GroupID: group.ID}
	for _, member := range roster {
		report.compare("member", member.ID, "total_contributed",
			member.TotalContributed, values.memberContributed[member.ID])
		report.compare("member", member.ID, "total_penalties",
			member.TotalPenalties, values.memberPenalties[member.ID])
		report.compare("member", member.ID, "payout_amount",
			member.PayoutAmount, values.memberPayout[member.ID])
	}
	report.compare("group", group.ID, "stats_total_collected",
		group.Stats.TotalCollected, values.groupCollected)
	report.compare("group", group.ID, "stats_total_disbursed",
		group.Stats.TotalDisbursed, values.groupDisbursed)
	report.compare("group", group.ID, "stats_total_penalties",
		group.Stats.TotalPenalties, values.groupPenalties)
	report.compare("group", group.ID, "stats_completed_cycles",
		int64(group.Stats.CompletedCycles), int64(values.completedCycles))
	report.compare("group", group.ID, "stats_active_members",
		int64(group.Stats.ActiveMembers), int64(values.activeMembers))
	return report
}

func (r *Report) compare(entity string, id uuid.UUID, field string, cached, recomputed int64) {
	if cached == recomputed {
		return
	}
	r.Drifts = append(r.Drifts, Drift{
		Entity:   entity,
		ID:       id,
		Field:    field,
		Cached:   cached,
		Computed: recomputed,
	})
}

// String renders a drift for logs and operator output.
func (d Drift) String() string {
	return fmt.Sprintf("%s %s %s: cached %d, recomputed %d", d.Entity, d.ID, d.Field, d.Cached, d.Computed)
}

func sumByMember(rows []MemberAmount) map[uuid.UUID]int64 {
	grouped := make(map[uuid.UUID][]int64)
	for _, row := range rows {
		grouped[row.MemberID] = append(grouped[row.MemberID], row.Amount)
	}
	totals := make(map[uuid.UUID]int64, len(grouped))
	for memberID, amounts := range grouped {
		totals[memberID] = money.Sum(amounts...)
	}
	return totals
}

func sumAll(rows []MemberAmount) int64 {
	amounts := make([]int64, 0, len(rows))
	for _, row := range rows {
		amounts = append(amounts, row.Amount)
	}
	return money.Sum(amounts...)
}
