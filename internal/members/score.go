package members

// Score derives a member's performance score from their payment history:
// clamp(100 - 10*missed - 5*late + min(2*streak, 20), 0, 100).
func Score(missed, late, streak int) int {
	bonus := 2 * streak
	if bonus > 20 {
		bonus = 20
	}
	score := 100 - 10*missed - 5*late + bonus
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
