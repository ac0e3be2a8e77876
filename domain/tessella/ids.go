// Package tessella implements the core of the kernel: the append-only
// tessella log, the res identity table, and the reducer that folds a log
// into state. Everything else in the kernel (genus, entity, action,
// process, branch, sync) is built on top of Store and Reduce.
package tessella

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// ResID is a ULID: lexicographically sortable by creation time. Sentinel
// res use a fixed all-zero time component (see domain/sentinel).
type ResID string

// TessellaID is the single global monotonic sequence every tessella is
// assigned on append. Ordering across all res and all branches is total.
type TessellaID uint64

// NewResID mints a fresh ULID-based res id from the current time.
func NewResID() ResID {
	return ResID(ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy()).String())
}

// entropy is the one crypto/rand-backed monotonic source every NewResID
// call shares, locked for concurrent use.
var entropy = &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)}

// ulidEntropy returns the shared entropy source. ulid.New wants an
// io.Reader; rand.Reader already satisfies that, but we route through
// one shared ulid.Monotonic reader so ids minted within the same
// millisecond still sort.
func ulidEntropy() io.Reader {
	return entropy
}
