package testutil

import (
	"time"

	"github.com/google/uuid"
)

// TestClientID is a fixed borrower identifier for deterministic tests.
var TestClientID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Day returns midnight UTC on the given calendar date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
