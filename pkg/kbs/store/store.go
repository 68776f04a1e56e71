package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// Store persists the history of solve runs
type Store interface {
	Close() error

	// SaveRun inserts or replaces a run, keyed by ID
	SaveRun(ctx context.Context, r Run) error
	// GetRun returns internalerr.ErrNotFound for unknown IDs
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the most recent runs first
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run is a snapshot of one solved knowledge base
type Run struct {
	ID          string
	Source      string
	CreatedAt   time.Time
	Passes      int
	Transitions int
	Nodes       int
	Duration    time.Duration
	Assertions  []string
	Symbols     []SymbolValue
	Conflict    string
}

// SymbolValue is the solved state of one symbol
type SymbolValue struct {
	Name      string
	Solved    bool
	Value     string // T, F, a literal or ?
	Relations []string
}

// DefaultListLimit applies when ListRuns is called with a non-positive limit
const DefaultListLimit = 20

// Validate checks the fields every store relies on
func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: run without id", internalerr.ErrInvalidInput)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: run %s without timestamp", internalerr.ErrInvalidInput, r.ID)
	}
	return nil
}

// IDGenerator hands out monotonic ULIDs, so run IDs sort by creation time
type IDGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDGenerator creates a generator seeded from crypto/rand
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns an ID for a run created at t
func (g *IDGenerator) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}

var defaultIDs = NewIDGenerator()

// NewRunID returns a fresh run ID
func NewRunID() string {
	return defaultIDs.New(time.Now())
}

// Snapshot captures kb after stats was produced by a solve. It re-solves if
// the knowledge base changed since, and records the first conflict, if any.
func Snapshot(kb *kbs.KB, stats kbs.SolveStats, source string) Run {
	now := time.Now().UTC()
	run := Run{
		ID:          defaultIDs.New(now),
		Source:      source,
		CreatedAt:   now,
		Passes:      stats.Passes,
		Transitions: stats.Transitions,
		Nodes:       stats.Nodes,
		Duration:    stats.Duration,
	}

	if c := kb.HasConflict(); c != nil {
		run.Conflict = c.Message
	}
	for _, a := range kb.Assertions() {
		run.Assertions = append(run.Assertions, a.String())
	}
	for _, s := range kb.Symbols() {
		if kb.IsRelational(s) {
			continue
		}
		sol := kb.Solution(s)
		sv := SymbolValue{Name: s.Name(), Solved: sol.Solved, Value: sol.String()}
		for _, r := range kb.Relations(s) {
			sv.Relations = append(sv.Relations, r.String())
		}
		run.Symbols = append(run.Symbols, sv)
	}
	return run
}

// Copy returns a deep copy of r
func (r Run) Copy() Run {
	out := r
	out.Assertions = append([]string(nil), r.Assertions...)
	out.Symbols = nil
	for _, s := range r.Symbols {
		s.Relations = append([]string(nil), s.Relations...)
		out.Symbols = append(out.Symbols, s)
	}
	return out
}
