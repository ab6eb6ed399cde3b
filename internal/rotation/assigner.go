package rotation

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"

	"github.com/chitcircle/chitcircle-backend/pkg/db/models"
	"github.com/chitcircle/chitcircle-backend/pkg/enums"
	pkgerrors "github.com/chitcircle/chitcircle-backend/pkg/errors"
)

// Assignment maps member IDs to beneficiary turn numbers. A valid assignment
// is a bijection onto {1..N}; turn i picks the beneficiary of cycle i.
type Assignment map[uuid.UUID]int

// Assign produces the turn assignment for a group's members according to the
// rotation mode. Fixed and need_based keep the turn numbers already on the
// member rows; random and lottery draw a uniform permutation once. The result
// is always validated as a bijection onto {1..N}.
func Assign(members []models.Member, mode enums.TurnOrderType, r *rand.Rand) (Assignment, error) {
	if len(members) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no members to assign turns to")
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid turn order type %q", mode))
	}

	assignment := make(Assignment, len(members))
	if mode.Shuffles() {
		if r == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "random source required for shuffled rotation")
		}
		// Shuffle over a deterministic base order so equal inputs with an
		// equal seed produce equal draws.
		ordered := make([]models.Member, len(members))
		copy(ordered, members)
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].ID.String() < ordered[j].ID.String()
		})
		for position, turn := range r.Perm(len(ordered)) {
			assignment[ordered[position].ID] = turn + 1
		}
	} else {
		for _, member := range members {
			assignment[member.ID] = member.TurnNumber
		}
	}

	if err := Validate(assignment, len(members)); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Reassign applies an administrative remap on top of the current assignment
// and validates that the result is still a bijection. Members absent from the
// remap keep their current turn.
func Reassign(current Assignment, remap map[uuid.UUID]int) (Assignment, error) {
	if len(current) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no current turn assignment")
	}

	next := make(Assignment, len(current))
	for memberID, turn := range current {
		next[memberID] = turn
	}
	for memberID, turn := range remap {
		if _, ok := next[memberID]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("member %s is not part of the rotation", memberID))
		}
		next[memberID] = turn
	}

	if err := Validate(next, len(current)); err != nil {
		return nil, err
	}
	return next, nil
}

// Validate checks that the assignment covers exactly the turns {1..n} with no
// gaps or duplicates.
func Validate(assignment Assignment, n int) error {
	if len(assignment) != n {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("turn assignment covers %d members, expected %d", len(assignment), n))
	}
	seen := make(map[int]bool, n)
	for memberID, turn := range assignment {
		if turn < 1 || turn > n {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("turn %d for member %s is outside 1..%d", turn, memberID, n))
		}
		if seen[turn] {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("turn %d assigned more than once", turn))
		}
		seen[turn] = true
	}
	return nil
}

// BeneficiaryForTurn returns the member holding the given turn number.
func BeneficiaryForTurn(assignment Assignment, turn int) (uuid.UUID, bool) {
	for memberID, candidate := range assignment {
		if candidate == turn {
			return memberID, true
		}
	}
	return uuid.Nil, false
}
