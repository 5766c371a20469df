package lamport

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock stamps a single write. Timestamp is wall time for diagnostics and is
// never consulted when ordering.
type Clock struct {
	Lamport   uint64 `json:"lamport"`
	Timestamp int64  `json:"timestamp"`
	ActorID   string `json:"actorId"`
}

// Compare orders clocks by lamport, then by actor id bytewise.
func (c Clock) Compare(other Clock) int {
	switch {
	case c.Lamport < other.Lamport:
		return -1
	case c.Lamport > other.Lamport:
		return 1
	}
	return strings.Compare(c.ActorID, other.ActorID)
}

// Newer reports whether c wins over other under last-writer-wins.
func (c Clock) Newer(other Clock) bool {
	return c.Compare(other) > 0
}

func (c Clock) IsZero() bool {
	return c.Lamport == 0 && c.ActorID == ""
}

// Key is the actorId:lamport pair identifying the write.
func (c Clock) Key() string {
	return Key(c.ActorID, c.Lamport)
}

func Key(actorID string, lamport uint64) string {
	return actorID + ":" + strconv.FormatUint(lamport, 10)
}

func NewActorID() string {
	return uuid.NewString()
}

type Option func(*LocalClock)

func WithNow(now func() time.Time) Option {
	return func(c *LocalClock) {
		c.now = now
	}
}

// WithCounter seeds the counter, e.g. from a restored snapshot.
func WithCounter(counter uint64) Option {
	return func(c *LocalClock) {
		c.counter = counter
	}
}

// LocalClock is the per-replica lamport counter. Not safe for concurrent use.
type LocalClock struct {
	actorID string
	counter uint64
	now     func() time.Time
}

func New(actorID string, opts ...Option) *LocalClock {
	c := &LocalClock{actorID: actorID, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LocalClock) ActorID() string { return c.actorID }

func (c *LocalClock) Counter() uint64 { return c.counter }

// Tick stamps a new local write.
func (c *LocalClock) Tick() Clock {
	return c.Observe(0)
}

// Observe advances the counter past a lamport value seen elsewhere and
// returns the resulting stamp, so later local writes sort after it.
func (c *LocalClock) Observe(lamport uint64) Clock {
	c.counter = max(c.counter, lamport) + 1
	return Clock{
		Lamport:   c.counter,
		Timestamp: c.now().UnixMilli(),
		ActorID:   c.actorID,
	}
}
