package penalties

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chitcircle/chitcircle-backend/internal/audit"
	"github.com/chitcircle/chitcircle-backend/pkg/clock"
	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

type fakeRepo struct {
	createFn       func(ctx context.Context, penalty *models.Penalty) error
	findFn         func(ctx context.Context, id uuid.UUID) (*models.Penalty, error)
	existsFn       func(ctx context.Context, paymentID uuid.UUID, penaltyType enums.PenaltyType) (bool, error)
	listUnpaidFn   func(ctx context.Context, groupID, memberID uuid.UUID) ([]models.Penalty, error)
	unpaidTotalFn  func(ctx context.Context, groupID, memberID uuid.UUID) (int64, error)
	markPaidFn     func(ctx context.Context, groupID, memberID uuid.UUID, now time.Time) (int64, error)
	updateFn       func(ctx context.Context, id uuid.UUID, fields map[string]any) error
	updatedFields  map[string]any
	createdPenalty *models.Penalty
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) Create(ctx context.Context, penalty *models.Penalty) error {
	f.createdPenalty = penalty
	if f.createFn != nil {
		return f.createFn(ctx, penalty)
	}
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Penalty, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ExistsForPayment(ctx context.Context, paymentID uuid.UUID, penaltyType enums.PenaltyType) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, paymentID, penaltyType)
	}
	return false, nil
}

func (f *fakeRepo) ListUnpaidByMember(ctx context.Context, groupID, memberID uuid.UUID) ([]models.Penalty, error) {
	if f.listUnpaidFn != nil {
		return f.listUnpaidFn(ctx, groupID, memberID)
	}
	return nil, nil
}

func (f *fakeRepo) UnpaidTotalByMember(ctx context.Context, groupID, memberID uuid.UUID) (int64, error) {
	if f.unpaidTotalFn != nil {
		return f.unpaidTotalFn(ctx, groupID, memberID)
	}
	return 0, nil
}

func (f *fakeRepo) MarkPaidForMember(ctx context.Context, groupID, memberID uuid.UUID, now time.Time) (int64, error) {
	if f.markPaidFn != nil {
		return f.markPaidFn(ctx, groupID, memberID, now)
	}
	return 0, nil
}

func (f *fakeRepo) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	f.updatedFields = fields
	if f.updateFn != nil {
		return f.updateFn(ctx, id, fields)
	}
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeStamper struct {
	stamped  bool
	fee      int64
	daysLate int
}

func (f *fakeStamper) StampLateFee(_ context.Context, _ *gorm.DB, _ uuid.UUID, fee int64, daysLate int) error {
	f.stamped = true
	f.fee = fee
	f.daysLate = daysLate
	return nil
}

type fakeMemberLedger struct {
	deltas []int64
	userID uuid.UUID
}

func (f *fakeMemberLedger) AddPenaltyTotal(_ context.Context, _ *gorm.DB, _ uuid.UUID, delta int64) error {
	f.deltas = append(f.deltas, delta)
	return nil
}

func (f *fakeMemberLedger) UserIDForMember(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	return f.userID, nil
}

type fakeGroupLedger struct {
	deltas []int64
}

func (f *fakeGroupLedger) AddPenaltyStats(_ context.Context, _ *gorm.DB, _ uuid.UUID, delta int64) error {
	f.deltas = append(f.deltas, delta)
	return nil
}

type fakeAudit struct {
	actions []enums.AuditAction
}

func (f *fakeAudit) Record(_ context.Context, _ *gorm.DB, input audit.RecordInput) error {
	f.actions = append(f.actions, input.Action)
	return nil
}

type fakeNotifier struct {
	types []enums.NotificationType
}

func (f *fakeNotifier) Notify(_ context.Context, _ uuid.UUID, notificationType enums.NotificationType, _, _ string, _ any) {
	f.types = append(f.types, notificationType)
}

type serviceFixture struct {
	svc      Service
	repo     *fakeRepo
	stamper  *fakeStamper
	members  *fakeMemberLedger
	groups   *fakeGroupLedger
	audit    *fakeAudit
	notifier *fakeNotifier
}

func newFixture(t *testing.T, repo *fakeRepo) serviceFixture {
	t.Helper()
	fixture := serviceFixture{
		repo:     repo,
		stamper:  &fakeStamper{},
		members:  &fakeMemberLedger{userID: uuid.New()},
		groups:   &fakeGroupLedger{},
		audit:    &fakeAudit{},
		notifier: &fakeNotifier{},
	}
	svc, err := NewService(repo, fakeTxRunner{}, fixture.stamper, fixture.members, fixture.groups, fixture.audit, fixture.notifier, clock.At(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func testGroup(lateFee int64) *models.Group {
	return &models.Group{
		ID:          uuid.New(),
		OrganizerID: uuid.New(),
		PenaltyRules: models.PenaltyRules{
			LateFee:          lateFee,
			GracePeriodDays:  2,
			DefaultThreshold: 3,
		},
	}
}

func TestLateFeeCalculator(t *testing.T) {
	if fee := LateFeeFor(testGroup(250)); fee != 250 {
		t.Fatalf("expected 250, got %d", fee)
	}
	if fee := LateFeeFor(testGroup(0)); fee != 0 {
		t.Fatalf("expected 0 for unconfigured fee, got %d", fee)
	}
	if fee := DefaultPenaltyFor(testGroup(250)); fee != 500 {
		t.Fatalf("expected default penalty 500, got %d", fee)
	}
}

func TestApplyLateFeeCreatesOnePenalty(t *testing.T) {
	fixture := newFixture(t, &fakeRepo{})
	group := testGroup(250)
	payment := &models.Payment{ID: uuid.New(), MemberID: uuid.New(), CycleID: uuid.New()}

	penalty, err := fixture.svc.ApplyLateFee(context.Background(), nil, group, payment, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if penalty == nil {
		t.Fatal("expected a penalty")
	}
	if penalty.Amount != 250 || penalty.Type != enums.PenaltyTypeLateFee || penalty.DaysLate != 3 {
		t.Fatalf("unexpected penalty: %+v", penalty)
	}
	if !fixture.stamper.stamped || fixture.stamper.fee != 250 {
		t.Fatalf("expected payment stamped with fee, got %+v", fixture.stamper)
	}
	if len(fixture.members.deltas) != 1 || fixture.members.deltas[0] != 250 {
		t.Fatalf("expected member penalty delta +250, got %v", fixture.members.deltas)
	}
	if len(fixture.groups.deltas) != 1 || fixture.groups.deltas[0] != 250 {
		t.Fatalf("expected group penalty delta +250, got %v", fixture.groups.deltas)
	}
}

func TestApplyLateFeeSkipsWhenAlreadyApplied(t *testing.T) {
	repo := &fakeRepo{existsFn: func(_ context.Context, _ uuid.UUID, _ enums.PenaltyType) (bool, error) {
		return true, nil
	}}
	fixture := newFixture(t, repo)

	penalty, err := fixture.svc.ApplyLateFee(context.Background(), nil, testGroup(250), &models.Payment{ID: uuid.New()}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if penalty != nil {
		t.Fatal("expected no duplicate penalty")
	}
	if repo.createdPenalty != nil {
		t.Fatal("create must not run when the fee already exists")
	}
	if len(fixture.members.deltas) != 0 {
		t.Fatal("totals must not move on a duplicate application")
	}
}

func TestApplyLateFeeSkipsZeroFee(t *testing.T) {
	fixture := newFixture(t, &fakeRepo{})

	penalty, err := fixture.svc.ApplyLateFee(context.Background(), nil, testGroup(0), &models.Payment{ID: uuid.New()}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if penalty != nil {
		t.Fatal("expected no penalty for a zero fee")
	}
}

func TestWaiveUnpaidPenaltyDecrementsTotals(t *testing.T) {
	penaltyID, memberID, groupID := uuid.New(), uuid.New(), uuid.New()
	repo := &fakeRepo{findFn: func(_ context.Context, id uuid.UUID) (*models.Penalty, error) {
		return &models.Penalty{ID: penaltyID, GroupID: groupID, MemberID: memberID, Amount: 250, Type: enums.PenaltyTypeLateFee}, nil
	}}
	fixture := newFixture(t, repo)

	waived, err := fixture.svc.Waive(context.Background(), WaiveInput{
		PenaltyID: penaltyID,
		AdminID:   uuid.New(),
		Reason:    "hardship",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !waived.IsWaived {
		t.Fatal("expected penalty waived")
	}
	if len(fixture.members.deltas) != 1 || fixture.members.deltas[0] != -250 {
		t.Fatalf("expected member delta -250, got %v", fixture.members.deltas)
	}
	if len(fixture.groups.deltas) != 1 || fixture.groups.deltas[0] != -250 {
		t.Fatalf("expected group delta -250, got %v", fixture.groups.deltas)
	}
	if len(fixture.notifier.types) != 1 || fixture.notifier.types[0] != enums.NotificationTypePenaltyWaived {
		t.Fatalf("expected waive notification, got %v", fixture.notifier.types)
	}
}

func TestWaivePaidPenaltyFails(t *testing.T) {
	repo := &fakeRepo{findFn: func(_ context.Context, id uuid.UUID) (*models.Penalty, error) {
		return &models.Penalty{ID: id, GroupID: uuid.New(), MemberID: uuid.New(), Amount: 250, IsPaid: true}, nil
	}}
	fixture := newFixture(t, repo)

	_, err := fixture.svc.Waive(context.Background(), WaiveInput{PenaltyID: uuid.New(), AdminID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(fixture.members.deltas) != 0 {
		t.Fatal("totals must not move when the waive is rejected")
	}
}

func TestWaiveWaivedPenaltyFails(t *testing.T) {
	repo := &fakeRepo{findFn: func(_ context.Context, id uuid.UUID) (*models.Penalty, error) {
		return &models.Penalty{ID: id, GroupID: uuid.New(), MemberID: uuid.New(), Amount: 250, IsWaived: true}, nil
	}}
	fixture := newFixture(t, repo)

	_, err := fixture.svc.Waive(context.Background(), WaiveInput{PenaltyID: uuid.New(), AdminID: uuid.New()})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSettleForMember(t *testing.T) {
	var settledAt time.Time
	repo := &fakeRepo{markPaidFn: func(_ context.Context, _, _ uuid.UUID, now time.Time) (int64, error) {
		settledAt = now
		return 2, nil
	}}
	fixture := newFixture(t, repo)

	count, err := fixture.svc.SettleForMember(context.Background(), nil, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 settled penalties, got %d", count)
	}
	if settledAt.IsZero() {
		t.Fatal("expected injected clock timestamp")
	}
}
