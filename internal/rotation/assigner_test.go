package rotation

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

func fixedMembers(turns ...int) []models.Member {
	members := make([]models.Member, 0, len(turns))
	for _, turn := range turns {
		members = append(members, models.Member{ID: uuid.New(), TurnNumber: turn})
	}
	return members
}

func TestAssignFixedValidates(t *testing.T) {
	members := fixedMembers(2, 1, 3)

	assignment, err := Assign(members, enums.TurnOrderTypeFixed, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, member := range members {
		if assignment[member.ID] != member.TurnNumber {
			t.Fatalf("member %s moved from turn %d to %d", member.ID, member.TurnNumber, assignment[member.ID])
		}
	}
}

func TestAssignFixedRejectsGapsAndDuplicates(t *testing.T) {
	cases := map[string][]models.Member{
		"gap":       fixedMembers(1, 3, 4),
		"duplicate": fixedMembers(1, 2, 2),
		"zero":      fixedMembers(0, 1, 2),
	}
	for name, members := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Assign(members, enums.TurnOrderTypeFixed, nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAssignRandomIsBijective(t *testing.T) {
	members := fixedMembers(0, 0, 0, 0, 0)

	assignment, err := Assign(members, enums.TurnOrderTypeRandom, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(assignment, len(members)); err != nil {
		t.Fatalf("random assignment is not a bijection: %v", err)
	}
}

func TestAssignRandomIsDeterministicPerSeed(t *testing.T) {
	members := fixedMembers(0, 0, 0, 0)

	first, err := Assign(members, enums.TurnOrderTypeLottery, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Assign(members, enums.TurnOrderTypeLottery, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for memberID, turn := range first {
		if second[memberID] != turn {
			t.Fatalf("seeded draw diverged for member %s: %d vs %d", memberID, turn, second[memberID])
		}
	}
}

func TestAssignShuffledRequiresRandSource(t *testing.T) {
	members := fixedMembers(0, 0)
	if _, err := Assign(members, enums.TurnOrderTypeRandom, nil); err == nil {
		t.Fatal("expected error without a random source")
	}
}

func TestReassignSwapsTurns(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	current := Assignment{a: 1, b: 2, c: 3}

	next, err := Reassign(current, map[uuid.UUID]int{a: 2, b: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next[a] != 2 || next[b] != 1 || next[c] != 3 {
		t.Fatalf("unexpected assignment after swap: %v", next)
	}
	if current[a] != 1 {
		t.Fatal("reassign mutated the input assignment")
	}
}

func TestReassignRejectsBrokenBijection(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	current := Assignment{a: 1, b: 2}

	if _, err := Reassign(current, map[uuid.UUID]int{a: 2}); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for duplicate turn, got %v", err)
	}
}

func TestReassignRejectsUnknownMember(t *testing.T) {
	a := uuid.New()
	current := Assignment{a: 1}

	if _, err := Reassign(current, map[uuid.UUID]int{uuid.New(): 1}); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestBeneficiaryForTurn(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assignment := Assignment{a: 1, b: 2}

	memberID, ok := BeneficiaryForTurn(assignment, 2)
	if !ok || memberID != b {
		t.Fatalf("expected member %s for turn 2, got %s (ok=%v)", b, memberID, ok)
	}
	if _, ok := BeneficiaryForTurn(assignment, 3); ok {
		t.Fatal("expected no beneficiary for turn 3")
	}
}
