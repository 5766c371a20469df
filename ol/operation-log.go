package ol

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/kevinxiao27/crdt-engine/util"
)

// Log buffers local operations until they are exported and remembers every
// operation id already incorporated, local or remote. The applied set only
// grows; rehydrating from a snapshot is how callers bound it.
type Log[T any] struct {
	unsent  []Operation[T]
	applied mapset.Set[string]
}

func NewLog[T any]() *Log[T] {
	return &Log[T]{
		unsent:  []Operation[T]{},
		applied: mapset.NewThreadUnsafeSet[string](),
	}
}

// Record queues a local operation for export. It reports false and does
// nothing if the operation id was already recorded or applied.
func (l *Log[T]) Record(op Operation[T]) bool {
	if !l.applied.Add(op.ID()) {
		return false
	}
	l.unsent = append(l.unsent, op)
	recordedOps.Inc()
	return true
}

// ApplyRemote returns the operations of the batch not seen before, in batch
// order, and marks them seen. Repeats inside the batch count as seen too.
func (l *Log[T]) ApplyRemote(ops []Operation[T]) []Operation[T] {
	fresh := util.Filter(ops, func(op Operation[T]) bool {
		return l.applied.Add(op.ID())
	})
	remoteOps.WithLabelValues("applied").Add(float64(len(fresh)))
	remoteOps.WithLabelValues("duplicate").Add(float64(len(ops) - len(fresh)))
	return fresh
}

func (l *Log[T]) Seen(op Operation[T]) bool {
	return l.applied.Contains(op.ID())
}

// ExportOperations drains the unsent buffer.
func (l *Log[T]) ExportOperations() []Operation[T] {
	out := l.unsent
	l.unsent = []Operation[T]{}
	exportedOps.Add(float64(len(out)))
	return out
}

func (l *Log[T]) Pending() int {
	return len(l.unsent)
}

// Applied is the number of distinct operation ids incorporated so far.
func (l *Log[T]) Applied() int {
	return l.applied.Cardinality()
}
