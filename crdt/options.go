package crdt

import (
	"errors"
	"time"

	"github.com/kevinxiao27/crdt-engine/lamport"
	"github.com/kevinxiao27/crdt-engine/util"
)

var (
	ErrIndexOutOfRange  = errors.New("crdt: index out of range")
	ErrInvalidOperation = errors.New("crdt: invalid operation")
	ErrInvalidSnapshot  = errors.New("crdt: invalid snapshot")
)

type config struct {
	actorID string
	logger  util.Logger
	now     func() time.Time
}

type Option func(*config)

func WithLogger(logger util.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithNow replaces the wall clock used for operation timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithActorID sets the replica identity. On restore it overrides the actor
// recorded in the snapshot, which a fresh replica hydrating from a peer's
// snapshot must do.
func WithActorID(actorID string) Option {
	return func(c *config) {
		c.actorID = actorID
	}
}

func newConfig(actorID string, opts []Option) config {
	cfg := config{actorID: actorID, logger: util.NopLogger, now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c config) clock(counter uint64) *lamport.LocalClock {
	return lamport.New(c.actorID, lamport.WithNow(c.now), lamport.WithCounter(counter))
}
