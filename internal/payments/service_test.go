package payments

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/internal/members"
	"github.com/chitcircle/chitcircle-backend/internal/penalties"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
	"github.com/chitcircle/chitcircle-backend/pkg/logger"
)

type fakePaymentRepo struct {
	payments map[uuid.UUID]*models.Payment
	created  int
}

func newFakePaymentRepo(payments ...*models.Payment) *fakePaymentRepo {
	repo := &fakePaymentRepo{payments: map[uuid.UUID]*models.Payment{}}
	for _, payment := range payments {
		repo.payments[payment.ID] = payment
	}
	return repo
}

func (f *fakePaymentRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	payment.ID = uuid.New()
	f.payments[payment.ID] = payment
	f.created++
	return nil
}

func (f *fakePaymentRepo) CreateBatch(ctx context.Context, payments []models.Payment) error {
	return nil
}

func (f *fakePaymentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	if payment, ok := f.payments[id]; ok {
		copied := *payment
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) FindByMemberAndCycle(ctx context.Context, memberID, cycleID uuid.UUID) (*models.Payment, error) {
	for _, payment := range f.payments {
		if payment.MemberID == memberID && payment.CycleID == cycleID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) ListByCycleAndStatuses(ctx context.Context, cycleID uuid.UUID, statuses []enums.PaymentStatus) ([]models.Payment, error) {
	var result []models.Payment
	for _, payment := range f.payments {
		if payment.CycleID != cycleID {
			continue
		}
		for _, status := range statuses {
			if payment.Status == status {
				result = append(result, *payment)
				break
			}
		}
	}
	return result, nil
}

func (f *fakePaymentRepo) DeleteByGroup(ctx context.Context, groupID uuid.UUID) error { return nil }

func (f *fakePaymentRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	payment, ok := f.payments[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	applyPaymentFields(payment, fields)
	return nil
}

func (f *fakePaymentRepo) StampLateFee(ctx context.Context, tx *gorm.DB, paymentID uuid.UUID, fee int64, daysLate int) error {
	if payment, ok := f.payments[paymentID]; ok {
		payment.LateFee = fee
		payment.IsLate = true
		payment.DaysLate = daysLate
	}
	return nil
}

func applyPaymentFields(payment *models.Payment, fields map[string]any) {
	for key, value := range fields {
		switch key {
		case "amount":
			payment.Amount = value.(int64)
		case "status":
			payment.Status = value.(enums.PaymentStatus)
		case "paid_at":
			at := value.(time.Time)
			payment.PaidAt = &at
		case "is_late":
			payment.IsLate = value.(bool)
		case "days_late":
			payment.DaysLate = value.(int)
		case "reviewed_by":
			id := value.(uuid.UUID)
			payment.ReviewedBy = &id
		}
	}
}

type fakeMemberRepo struct {
	members map[uuid.UUID]*models.Member
	contrib map[uuid.UUID]int64
}

func newFakeMemberRepo(membersIn ...*models.Member) *fakeMemberRepo {
	repo := &fakeMemberRepo{members: map[uuid.UUID]*models.Member{}, contrib: map[uuid.UUID]int64{}}
	for _, member := range membersIn {
		repo.members[member.ID] = member
	}
	return repo
}

func (f *fakeMemberRepo) WithTx(tx *gorm.DB) members.Repository { return f }

func (f *fakeMemberRepo) Create(ctx context.Context, member *models.Member) error {
	f.members[member.ID] = member
	return nil
}

func (f *fakeMemberRepo) FindByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Member, error) {
	var result []models.Member
	for _, member := range f.members {
		if member.GroupID == groupID {
			result = append(result, *member)
		}
	}
	return result, nil
}

func (f *fakeMemberRepo) FindByGroupAndUser(ctx context.Context, groupID, userID uuid.UUID) (*models.Member, error) {
	for _, member := range f.members {
		if member.GroupID == groupID && member.UserID == userID {
			copied := *member
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMemberRepo) CountByGroupAndStatus(ctx context.Context, groupID uuid.UUID, status enums.MemberStatus) (int, error) {
	count := 0
	for _, member := range f.members {
		if member.GroupID == groupID && member.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeMemberRepo) SetTurnNumbers(ctx context.Context, assignment map[uuid.UUID]int) error {
	for id, turn := range assignment {
		if member, ok := f.members[id]; ok {
			member.TurnNumber = turn
		}
	}
	return nil
}

func (f *fakeMemberRepo) AddPenaltyTotal(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error {
	if member, ok := f.members[memberID]; ok {
		member.TotalPenalties += delta
	}
	return nil
}

func (f *fakeMemberRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if member, ok := f.members[id]; ok {
		copied := *member
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMemberRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	member, ok := f.members[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for key, value := range fields {
		switch key {
		case "payment_streak":
			member.PaymentStreak = value.(int)
		case "late_payments":
			member.LatePayments = value.(int)
		case "missed_payments":
			member.MissedPayments = value.(int)
		case "performance_score":
			member.PerformanceScore = value.(int)
		case "status":
			member.Status = value.(enums.MemberStatus)
		}
	}
	return nil
}

func (f *fakeMemberRepo) AddContribution(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, delta int64) error {
	f.contrib[memberID] += delta
	if member, ok := f.members[memberID]; ok {
		member.TotalContributed += delta
	}
	return nil
}

func (f *fakeMemberRepo) UserIDForMember(ctx context.Context, memberID uuid.UUID) (uuid.UUID, error) {
	if member, ok := f.members[memberID]; ok {
		return member.UserID, nil
	}
	return uuid.Nil, gorm.ErrRecordNotFound
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeGroupReader struct {
	group *models.Group
}

func (f *fakeGroupReader) FindByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	if f.group == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.group
	return &copied, nil
}

type fakeCycleReader struct {
	cycle *models.Cycle
}

func (f *fakeCycleReader) FindByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	if f.cycle == nil || f.cycle.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.cycle
	return &copied, nil
}

type fakeGroupLedger struct {
	collected int64
}

func (f *fakeGroupLedger) AddCollected(ctx context.Context, tx *gorm.DB, groupID uuid.UUID, delta int64) error {
	f.collected += delta
	return nil
}

type fakePenaltyService struct {
	lateFees       int
	defaultPens    int
	settledMembers []uuid.UUID
	lastDaysLate   int
	unpaidTotals   map[uuid.UUID]int64
}

func (f *fakePenaltyService) ApplyLateFee(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, daysLate int) (*models.Penalty, error) {
	f.lateFees++
	f.lastDaysLate = daysLate
	return &models.Penalty{Amount: group.PenaltyRules.LateFee, Type: enums.PenaltyTypeLateFee}, nil
}

func (f *fakePenaltyService) ApplyDefaultPenalty(ctx context.Context, tx *gorm.DB, group *models.Group, payment *models.Payment, daysLate int) (*models.Penalty, error) {
	f.defaultPens++
	return &models.Penalty{Amount: 2 * group.PenaltyRules.LateFee, Type: enums.PenaltyTypeDefaultPenalty}, nil
}

func (f *fakePenaltyService) SettleForMember(ctx context.Context, tx *gorm.DB, groupID, memberID uuid.UUID) (int64, error) {
	f.settledMembers = append(f.settledMembers, memberID)
	return 1, nil
}

func (f *fakePenaltyService) UnpaidTotalForMember(ctx context.Context, tx *gorm.DB, groupID, memberID uuid.UUID) (int64, error) {
	if f.unpaidTotals == nil {
		return 0, nil
	}
	return f.unpaidTotals[memberID], nil
}

func (f *fakePenaltyService) Waive(ctx context.Context, input penalties.WaiveInput) (*models.Penalty, error) {
	return nil, nil
}

type fakeCycleService struct {
	recounts        int
	readinessChecks int
}

func (f *fakeCycleService) UpdatePaymentCounts(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (*models.Cycle, error) {
	f.recounts++
	return &models.Cycle{ID: cycleID}, nil
}

func (f *fakeCycleService) CheckPayoutReadiness(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID) (bool, error) {
	f.readinessChecks++
	return false, nil
}

func (f *fakeCycleService) CompletePayout(ctx context.Context, tx *gorm.DB, cycleID uuid.UUID, amount int64, userID uuid.UUID) (*models.Cycle, error) {
	return nil, nil
}

func (f *fakeCycleService) ForceComplete(ctx context.Context, cycleID uuid.UUID) error { return nil }

type fakeAudit struct {
	actions []enums.AuditAction
}

func (f *fakeAudit) Record(_ context.Context, _ *gorm.DB, input audit.RecordInput) error {
	f.actions = append(f.actions, input.Action)
	return nil
}

type fakeNotifier struct {
	recipients []uuid.UUID
	types      []enums.NotificationType
}

func (f *fakeNotifier) Notify(_ context.Context, userID uuid.UUID, notificationType enums.NotificationType, _, _ string, _ any) {
	f.recipients = append(f.recipients, userID)
	f.types = append(f.types, notificationType)
}

type fixture struct {
	svc       Service
	repo      *fakePaymentRepo
	members   *fakeMemberRepo
	ledger    *fakeGroupLedger
	penalties *fakePenaltyService
	cycles    *fakeCycleService
	audit     *fakeAudit
	notifier  *fakeNotifier
	group     *models.Group
	cycle     *models.Cycle
	now       time.Time
}

func newFixture(t *testing.T, repo *fakePaymentRepo, memberRepo *fakeMemberRepo, group *models.Group, cycle *models.Cycle, now time.Time) *fixture {
	t.Helper()
	fx := &fixture{
		repo:      repo,
		members:   memberRepo,
		ledger:    &fakeGroupLedger{},
		penalties: &fakePenaltyService{},
		cycles:    &fakeCycleService{},
		audit:     &fakeAudit{},
		notifier:  &fakeNotifier{},
		group:     group,
		cycle:     cycle,
		now:       now,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(
		repo,
		fakeTxRunner{},
		fx.members,
		&fakeGroupReader{group: group},
		&fakeCycleReader{cycle: cycle},
		fx.ledger,
		fx.penalties,
		fx.cycles,
		fx.audit,
		fx.notifier,
		logg,
		clock.At(now),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fx.svc = svc
	return fx
}

func paymentGroup(organizerID uuid.UUID) *models.Group {
	return &models.Group{
		ID:                 uuid.New(),
		OrganizerID:        organizerID,
		ContributionAmount: 5000,
		Status:             enums.GroupStatusActive,
		PenaltyRules: models.PenaltyRules{
			LateFee:          250,
			GracePeriodDays:  2,
			DefaultThreshold: 3,
		},
	}
}

func paymentCycle(groupID uuid.UUID, due time.Time) *models.Cycle {
	return &models.Cycle{
		ID:      uuid.New(),
		GroupID: groupID,
		Status:  enums.CycleStatusActive,
		EndDate: due,
	}
}

func activeMember(groupID uuid.UUID) *models.Member {
	return &models.Member{
		ID:               uuid.New(),
		GroupID:          groupID,
		UserID:           uuid.New(),
		Status:           enums.MemberStatusActive,
		PerformanceScore: 100,
	}
}

func TestRecordOnTimeLandsUnderReview(t *testing.T) {
	organizerID := uuid.New()
	group := paymentGroup(organizerID)
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	fx := newFixture(t, newFakePaymentRepo(), newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, -3))

	payment, err := fx.svc.Record(context.Background(), RecordInput{
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Amount:   "5,000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != enums.PaymentStatusUnderReview {
		t.Fatalf("expected under_review, got %s", payment.Status)
	}
	if payment.Amount != 5000 {
		t.Fatalf("expected sanitized amount 5000, got %d", payment.Amount)
	}
	if payment.IsLate {
		t.Fatal("on-time payment must not be late")
	}
	if member.PaymentStreak != 1 {
		t.Fatalf("expected streak 1, got %d", member.PaymentStreak)
	}
	if fx.members.contrib[member.ID] != 5000 || fx.ledger.collected != 5000 {
		t.Fatal("expected contribution rollup on member and group")
	}
	if fx.penalties.lateFees != 0 {
		t.Fatal("no fee expected for an on-time record")
	}
	if fx.cycles.readinessChecks != 1 {
		t.Fatalf("expected one readiness check, got %d", fx.cycles.readinessChecks)
	}
	if len(fx.notifier.recipients) != 1 || fx.notifier.recipients[0] != organizerID {
		t.Fatal("expected the organizer notified for review")
	}
}

func TestRecordLateAppliesFeeAndResetsStreak(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	member.PaymentStreak = 4
	// One day past the 2-day grace window.
	fx := newFixture(t, newFakePaymentRepo(), newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, 3).Add(time.Hour))

	payment, err := fx.svc.Record(context.Background(), RecordInput{
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Amount:   "5000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != enums.PaymentStatusUnderReview {
		t.Fatalf("lateness must not change the review status, got %s", payment.Status)
	}
	if !payment.IsLate || payment.DaysLate != 3 {
		t.Fatalf("expected 3 days late, got late=%v days=%d", payment.IsLate, payment.DaysLate)
	}
	if fx.penalties.lateFees != 1 {
		t.Fatalf("expected exactly one late fee, got %d", fx.penalties.lateFees)
	}
	if member.PaymentStreak != 0 || member.LatePayments != 1 {
		t.Fatalf("expected streak reset and late count 1, got %d/%d", member.PaymentStreak, member.LatePayments)
	}
	if member.PerformanceScore != 95 {
		t.Fatalf("expected score 95, got %d", member.PerformanceScore)
	}
}

func TestRecordOverPendingUpdatesInPlace(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	existing := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusPending,
		DueDate:  due,
	}
	repo := newFakePaymentRepo(existing)
	fx := newFixture(t, repo, newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, -1))

	payment, err := fx.svc.Record(context.Background(), RecordInput{
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Amount:   "5000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.created != 0 {
		t.Fatal("expected in-place update, not a new row")
	}
	if payment.ID != existing.ID {
		t.Fatal("expected the existing payment row")
	}
	if existing.Status != enums.PaymentStatusUnderReview {
		t.Fatalf("expected under_review, got %s", existing.Status)
	}
}

func TestRecordOverUnderReviewConflicts(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	existing := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusUnderReview,
		DueDate:  due,
	}
	fx := newFixture(t, newFakePaymentRepo(existing), newFakeMemberRepo(member), group, cycle, due)

	_, err := fx.svc.Record(context.Background(), RecordInput{
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Amount:   "5000",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRecordOverRejectedAllowsResubmission(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	existing := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusRejected,
		DueDate:  due,
	}
	fx := newFixture(t, newFakePaymentRepo(existing), newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, -1))

	payment, err := fx.svc.Record(context.Background(), RecordInput{
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Amount:   "5000",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != enums.PaymentStatusUnderReview {
		t.Fatalf("expected resubmission to land under review, got %s", payment.Status)
	}
}

func TestRecordRejectsMalformedAmount(t *testing.T) {
	group := paymentGroup(uuid.New())
	cycle := paymentCycle(group.ID, time.Now())
	member := activeMember(group.ID)
	fx := newFixture(t, newFakePaymentRepo(), newFakeMemberRepo(member), group, cycle, time.Now())

	_, err := fx.svc.Record(context.Background(), RecordInput{
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Amount:   "no digits",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmSettlesAndClearsPenaltyBacklog(t *testing.T) {
	group := paymentGroup(uuid.New())
	cycle := paymentCycle(group.ID, time.Now())
	member := activeMember(group.ID)
	payment := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusUnderReview,
		Amount:   5000,
	}
	fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, time.Now())

	confirmed, err := fx.svc.Confirm(context.Background(), ReviewInput{PaymentID: payment.ID, AdminID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != enums.PaymentStatusSettled {
		t.Fatalf("expected settled, got %s", confirmed.Status)
	}
	if len(fx.penalties.settledMembers) != 1 || fx.penalties.settledMembers[0] != member.ID {
		t.Fatal("expected the member's penalty backlog settled")
	}
	if fx.cycles.readinessChecks != 1 {
		t.Fatal("expected a readiness recount")
	}
	if len(fx.notifier.types) != 1 || fx.notifier.types[0] != enums.NotificationTypePaymentConfirmed {
		t.Fatalf("expected confirmation notification, got %v", fx.notifier.types)
	}
}

func TestConfirmFromLateIsAllowed(t *testing.T) {
	group := paymentGroup(uuid.New())
	cycle := paymentCycle(group.ID, time.Now())
	member := activeMember(group.ID)
	payment := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusLate,
		Amount:   5000,
	}
	fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, time.Now())

	confirmed, err := fx.svc.Confirm(context.Background(), ReviewInput{PaymentID: payment.ID, AdminID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if confirmed.Status != enums.PaymentStatusSettled {
		t.Fatalf("expected settled, got %s", confirmed.Status)
	}
}

func TestConfirmGuardsInvalidStates(t *testing.T) {
	for _, status := range []enums.PaymentStatus{
		enums.PaymentStatusPending,
		enums.PaymentStatusSettled,
		enums.PaymentStatusRejected,
		enums.PaymentStatusDefaulted,
	} {
		t.Run(status.String(), func(t *testing.T) {
			group := paymentGroup(uuid.New())
			cycle := paymentCycle(group.ID, time.Now())
			member := activeMember(group.ID)
			payment := &models.Payment{
				ID:       uuid.New(),
				GroupID:  group.ID,
				MemberID: member.ID,
				CycleID:  cycle.ID,
				Status:   status,
			}
			fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, time.Now())

			_, err := fx.svc.Confirm(context.Background(), ReviewInput{PaymentID: payment.ID, AdminID: uuid.New()})
			if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("expected state conflict from %s, got %v", status, err)
			}
		})
	}
}

func TestRejectReversesRollup(t *testing.T) {
	group := paymentGroup(uuid.New())
	cycle := paymentCycle(group.ID, time.Now())
	member := activeMember(group.ID)
	member.TotalContributed = 5000
	payment := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusUnderReview,
		Amount:   5000,
	}
	fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, time.Now())

	rejected, err := fx.svc.Reject(context.Background(), ReviewInput{PaymentID: payment.ID, AdminID: uuid.New(), Reason: "no proof"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != enums.PaymentStatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if fx.members.contrib[member.ID] != -5000 {
		t.Fatalf("expected contribution reversed, delta %d", fx.members.contrib[member.ID])
	}
	if fx.ledger.collected != -5000 {
		t.Fatalf("expected group collected reversed, delta %d", fx.ledger.collected)
	}
}

func TestRejectOnlyFromUnderReview(t *testing.T) {
	group := paymentGroup(uuid.New())
	cycle := paymentCycle(group.ID, time.Now())
	member := activeMember(group.ID)
	payment := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusSettled,
	}
	fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, time.Now())

	_, err := fx.svc.Reject(context.Background(), ReviewInput{PaymentID: payment.ID, AdminID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkLateTransitionsPending(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	payment := &models.Payment{
		ID:       uuid.New(),
		GroupID:  group.ID,
		MemberID: member.ID,
		CycleID:  cycle.ID,
		Status:   enums.PaymentStatusPending,
		DueDate:  due,
	}
	fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, 5))

	marked, err := fx.svc.MarkLate(context.Background(), payment.ID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if marked.Status != enums.PaymentStatusLate {
		t.Fatalf("expected late, got %s", marked.Status)
	}
	if marked.DaysLate != 5 {
		t.Fatalf("expected 5 days late, got %d", marked.DaysLate)
	}
	if fx.penalties.lateFees != 1 {
		t.Fatal("expected one late fee")
	}

	_, err = fx.svc.MarkLate(context.Background(), payment.ID, uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on a second mark, got %v", err)
	}
}

func TestMarkStragglersLateSweepsUnsettled(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	memberA := activeMember(group.ID)
	memberB := activeMember(group.ID)
	memberC := activeMember(group.ID)
	pending := &models.Payment{
		ID: uuid.New(), GroupID: group.ID, MemberID: memberA.ID, CycleID: cycle.ID,
		Status: enums.PaymentStatusPending, DueDate: due, Amount: 5000,
	}
	underReview := &models.Payment{
		ID: uuid.New(), GroupID: group.ID, MemberID: memberB.ID, CycleID: cycle.ID,
		Status: enums.PaymentStatusUnderReview, DueDate: due, Amount: 5000,
	}
	settled := &models.Payment{
		ID: uuid.New(), GroupID: group.ID, MemberID: memberC.ID, CycleID: cycle.ID,
		Status: enums.PaymentStatusSettled, DueDate: due, Amount: 5000,
	}
	repo := newFakePaymentRepo(pending, underReview, settled)
	fx := newFixture(t, repo, newFakeMemberRepo(memberA, memberB, memberC), group, cycle, due.AddDate(0, 0, 4))

	processed, err := fx.svc.MarkStragglersLate(context.Background(), nil, group, cycle.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected 2 stragglers processed, got %d", processed)
	}
	if pending.Status != enums.PaymentStatusLate || underReview.Status != enums.PaymentStatusLate {
		t.Fatalf("expected both stragglers late, got %s and %s", pending.Status, underReview.Status)
	}
	if settled.Status != enums.PaymentStatusSettled {
		t.Fatal("settled payment must not be touched")
	}
	if memberA.MissedPayments != 1 {
		t.Fatalf("never-recorded straggler counts as missed, got %d", memberA.MissedPayments)
	}
	if memberB.MissedPayments != 0 || memberB.LatePayments != 1 {
		t.Fatalf("recorded straggler is only late, got missed=%d late=%d", memberB.MissedPayments, memberB.LatePayments)
	}
	if fx.penalties.lateFees != 2 {
		t.Fatalf("expected a fee per straggler, got %d", fx.penalties.lateFees)
	}
}

func TestMarkStragglersDefaultsAtThreshold(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	member.MissedPayments = 2
	payment := &models.Payment{
		ID: uuid.New(), GroupID: group.ID, MemberID: member.ID, CycleID: cycle.ID,
		Status: enums.PaymentStatusPending, DueDate: due, Amount: 5000,
	}
	fx := newFixture(t, newFakePaymentRepo(payment), newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, 4))

	if _, err := fx.svc.MarkStragglersLate(context.Background(), nil, group, cycle.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Status != enums.PaymentStatusDefaulted {
		t.Fatalf("expected defaulted at threshold, got %s", payment.Status)
	}
	if member.Status != enums.MemberStatusDefaulted {
		t.Fatalf("expected member defaulted, got %s", member.Status)
	}
	if fx.penalties.defaultPens != 1 || fx.penalties.lateFees != 0 {
		t.Fatalf("expected a default penalty, got late=%d default=%d", fx.penalties.lateFees, fx.penalties.defaultPens)
	}
}

func TestSweepOverdueIsIdempotent(t *testing.T) {
	group := paymentGroup(uuid.New())
	due := time.Date(2026, 3, 28, 0, 0, 0, 0, time.UTC)
	cycle := paymentCycle(group.ID, due)
	member := activeMember(group.ID)
	overdue := &models.Payment{
		ID: uuid.New(), GroupID: group.ID, MemberID: member.ID, CycleID: cycle.ID,
		Status: enums.PaymentStatusPending, DueDate: due,
	}
	inWindow := &models.Payment{
		ID: uuid.New(), GroupID: group.ID, MemberID: uuid.New(), CycleID: cycle.ID,
		Status: enums.PaymentStatusPending, DueDate: due.AddDate(0, 0, 10),
	}
	repo := newFakePaymentRepo(overdue, inWindow)
	fx := newFixture(t, repo, newFakeMemberRepo(member), group, cycle, due.AddDate(0, 0, 3).Add(time.Hour))

	processed, err := fx.svc.SweepOverdue(context.Background(), cycle.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 overdue payment processed, got %d", processed)
	}
	if overdue.Status != enums.PaymentStatusLate {
		t.Fatalf("expected late, got %s", overdue.Status)
	}
	if inWindow.Status != enums.PaymentStatusPending {
		t.Fatal("payment inside grace must stay pending")
	}
	if fx.cycles.recounts != 1 {
		t.Fatalf("expected one recount, got %d", fx.cycles.recounts)
	}

	processed, err = fx.svc.SweepOverdue(context.Background(), cycle.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 0 {
		t.Fatalf("second sweep must be a no-op, processed %d", processed)
	}
	if fx.cycles.recounts != 1 {
		t.Fatal("no recount expected on a no-op sweep")
	}
}
