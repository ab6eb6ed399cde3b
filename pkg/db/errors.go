package db

import "strings"

// IsUniqueViolation reports whether err is a unique-constraint failure from
// postgres or the sqlite driver used in tests. When constraintName is given,
// the match is narrowed to that constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
