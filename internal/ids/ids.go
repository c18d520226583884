// Package ids issues the identifiers used as primary keys for stored
// records.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu  sync.Mutex
	rng = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a fresh ULID. The monotonic entropy source keeps ids issued
// within the same millisecond sortable in creation order; the mutex makes
// that source safe to share across request goroutines.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), rng).String()
}
