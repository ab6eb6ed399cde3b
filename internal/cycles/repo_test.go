package cycles

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	cycles := `
CREATE TABLE IF NOT EXISTS cycles (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  cycle_number INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  start_date DATETIME NOT NULL,
  end_date DATETIME NOT NULL,
  beneficiary_id TEXT NOT NULL,
  expected_amount INTEGER NOT NULL DEFAULT 0,
  collected_amount INTEGER NOT NULL DEFAULT 0,
  total_members INTEGER NOT NULL DEFAULT 0,
  paid_count INTEGER NOT NULL DEFAULT 0,
  pending_count INTEGER NOT NULL DEFAULT 0,
  late_count INTEGER NOT NULL DEFAULT 0,
  defaulted_count INTEGER NOT NULL DEFAULT 0,
  is_ready_for_payout INTEGER NOT NULL DEFAULT 0,
  is_payout_completed INTEGER NOT NULL DEFAULT 0,
  payout_amount INTEGER NOT NULL DEFAULT 0,
  completed_at DATETIME,
  completed_by TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	payments := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  group_id TEXT NOT NULL,
  member_id TEXT NOT NULL,
  cycle_id TEXT NOT NULL,
  amount INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  due_date DATETIME NOT NULL,
  paid_at DATETIME,
  is_late INTEGER NOT NULL DEFAULT 0,
  days_late INTEGER NOT NULL DEFAULT 0,
  late_fee INTEGER NOT NULL DEFAULT 0,
  proof_ref TEXT,
  reviewed_by TEXT,
  reviewed_at DATETIME,
  notes TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	if err := conn.Exec(cycles).Error; err != nil {
		t.Fatalf("create cycles table: %v", err)
	}
	if err := conn.Exec(payments).Error; err != nil {
		t.Fatalf("create payments table: %v", err)
	}
	return conn
}

func seedPayment(t *testing.T, conn *gorm.DB, cycleID uuid.UUID, status enums.PaymentStatus, amount int64) {
	t.Helper()
	payment := models.Payment{
		ID:       uuid.New(),
		GroupID:  uuid.New(),
		MemberID: uuid.New(),
		CycleID:  cycleID,
		Amount:   amount,
		Status:   status,
		DueDate:  time.Now().UTC(),
	}
	if err := conn.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
}

func TestPaymentTalliesGroupsByStatus(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	cycleID := uuid.New()

	seedPayment(t, conn, cycleID, enums.PaymentStatusSettled, 5000)
	seedPayment(t, conn, cycleID, enums.PaymentStatusSettled, 5000)
	seedPayment(t, conn, cycleID, enums.PaymentStatusLate, 5000)
	seedPayment(t, conn, cycleID, enums.PaymentStatusPending, 5000)
	seedPayment(t, conn, uuid.New(), enums.PaymentStatusSettled, 9999)

	tallies, err := repo.PaymentTallies(context.Background(), cycleID)
	if err != nil {
		t.Fatalf("PaymentTallies returned error: %v", err)
	}

	byStatus := map[enums.PaymentStatus]StatusTally{}
	for _, tally := range tallies {
		byStatus[tally.Status] = tally
	}
	if got := byStatus[enums.PaymentStatusSettled]; got.Count != 2 || got.Amount != 10000 {
		t.Fatalf("unexpected settled tally %+v", got)
	}
	if got := byStatus[enums.PaymentStatusLate]; got.Count != 1 || got.Amount != 5000 {
		t.Fatalf("unexpected late tally %+v", got)
	}
	if got := byStatus[enums.PaymentStatusPending]; got.Count != 1 {
		t.Fatalf("unexpected pending tally %+v", got)
	}
}

func TestListOverdueFiltersByEndDateAndStatus(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	groupID := uuid.New()

	overdue := models.Cycle{
		ID:            uuid.New(),
		GroupID:       groupID,
		CycleNumber:   1,
		Status:        enums.CycleStatusActive,
		StartDate:     now.AddDate(0, -2, 0),
		EndDate:       now.AddDate(0, -1, 0),
		BeneficiaryID: uuid.New(),
	}
	current := models.Cycle{
		ID:            uuid.New(),
		GroupID:       groupID,
		CycleNumber:   2,
		Status:        enums.CycleStatusActive,
		StartDate:     now.AddDate(0, -1, 0),
		EndDate:       now.AddDate(0, 1, 0),
		BeneficiaryID: uuid.New(),
	}
	finished := models.Cycle{
		ID:            uuid.New(),
		GroupID:       uuid.New(),
		CycleNumber:   1,
		Status:        enums.CycleStatusCompleted,
		StartDate:     now.AddDate(0, -3, 0),
		EndDate:       now.AddDate(0, -2, 0),
		BeneficiaryID: uuid.New(),
	}
	for _, cycle := range []models.Cycle{overdue, current, finished} {
		if err := conn.Create(&cycle).Error; err != nil {
			t.Fatalf("seed cycle: %v", err)
		}
	}

	got, err := repo.ListOverdue(context.Background(), now)
	if err != nil {
		t.Fatalf("ListOverdue returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 overdue cycle, got %d", len(got))
	}
	if got[0].ID != overdue.ID {
		t.Fatalf("expected cycle %s got %s", overdue.ID, got[0].ID)
	}
}

func TestFindByGroupAndNumber(t *testing.T) {
	conn := openTestDB(t)
	repo := NewRepository(conn)
	groupID := uuid.New()

	cycle := models.Cycle{
		ID:            uuid.New(),
		GroupID:       groupID,
		CycleNumber:   3,
		Status:        enums.CycleStatusPending,
		StartDate:     time.Now().UTC(),
		EndDate:       time.Now().UTC().AddDate(0, 1, 0),
		BeneficiaryID: uuid.New(),
	}
	if err := conn.Create(&cycle).Error; err != nil {
		t.Fatalf("seed cycle: %v", err)
	}

	found, err := repo.FindByGroupAndNumber(context.Background(), groupID, 3)
	if err != nil {
		t.Fatalf("FindByGroupAndNumber returned error: %v", err)
	}
	if found.ID != cycle.ID {
		t.Fatalf("expected cycle %s got %s", cycle.ID, found.ID)
	}
}
