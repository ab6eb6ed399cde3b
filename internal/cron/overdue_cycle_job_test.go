package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
)

type fakeOverdueLister struct {
	cycles []models.Cycle
	before time.Time
}

func (f *fakeOverdueLister) ListOverdue(ctx context.Context, before time.Time) ([]models.Cycle, error) {
	f.before = before
	return f.cycles, nil
}

type fakeForcer struct {
	completed []uuid.UUID
	failOn    uuid.UUID
}

func (f *fakeForcer) ForceComplete(ctx context.Context, cycleID uuid.UUID) error {
	if cycleID == f.failOn {
		return errors.New("force complete failed")
	}
	f.completed = append(f.completed, cycleID)
	return nil
}

func TestOverdueCycleJobUsesGraceCutoff(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	lister := &fakeOverdueLister{}
	job, err := NewOverdueCycleJob(OverdueCycleJobParams{
		Logger:    newTestLogger(),
		Cycles:    lister,
		Completer: &fakeForcer{},
		GraceDays: 5,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	job.(*overdueCycleJob).now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := now.Add(-5 * 24 * time.Hour)
	if !lister.before.Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, lister.before)
	}
}

func TestOverdueCycleJobCompletesAllAndReportsFailures(t *testing.T) {
	cycleA := uuid.New()
	cycleB := uuid.New()
	forcer := &fakeForcer{failOn: cycleA}
	job, err := NewOverdueCycleJob(OverdueCycleJobParams{
		Logger:    newTestLogger(),
		Cycles:    &fakeOverdueLister{cycles: []models.Cycle{{ID: cycleA}, {ID: cycleB}}},
		Completer: forcer,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected the failing cycle to surface")
	}
	if len(forcer.completed) != 1 || forcer.completed[0] != cycleB {
		t.Fatalf("expected the healthy cycle to complete, got %v", forcer.completed)
	}
}
