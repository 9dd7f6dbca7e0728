package vb

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies the timestamps written to state markers and the ledger.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator names backup runs. The id appears in log lines and the run
// ledger.
type IDGenerator interface {
	New() string
}

// UUIDGenerator issues version 7 UUIDs, which sort by creation time.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.Must(uuid.NewV7()).String() }
