package crdt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sanity-io/litter"
	"github.com/tidwall/btree"

	"github.com/kevinxiao27/crdt-engine/lamport"
	"github.com/kevinxiao27/crdt-engine/ol"
	"github.com/kevinxiao27/crdt-engine/pos"
	"github.com/kevinxiao27/crdt-engine/util"
)

type element[T any] struct {
	id       string
	pos      string
	value    T
	deleted  bool
	clock    lamport.Clock // last value write
	posClock lamport.Clock // last applied move, zero if never moved
}

// Array is an ordered sequence replicated by position keys. Elements live in
// an arena and are never freed; removal only sets the tombstone flag.
// Index arguments address visible elements only.
//
// An Array is not safe for concurrent use.
type Array[T any] struct {
	slots  []element[T]
	index  map[string]int     // id -> slot
	order  *btree.BTreeG[int] // slots by (pos, id), tombstones included
	live   *btree.BTreeG[int] // visible slots only, same order
	hint   btree.PathHint
	tag    string // appended to every key this replica allocates
	clock  *lamport.LocalClock
	log    *ol.Log[T]
	logger util.Logger
}

func NewArray[T any](actorID string, opts ...Option) *Array[T] {
	cfg := newConfig(actorID, opts)
	return newArray[T](cfg, 0)
}

func newArray[T any](cfg config, counter uint64) *Array[T] {
	a := &Array[T]{
		index:  map[string]int{},
		clock:  cfg.clock(counter),
		log:    ol.NewLog[T](),
		logger: cfg.logger,
	}
	a.tag = pos.Tag(a.clock.ActorID())
	less := func(x, y int) bool {
		return a.cmp(x, y) < 0
	}
	opts := btree.Options{
		NoLocks: true,
		Degree:  8,
	}
	a.order = btree.NewBTreeGOptions(less, opts)
	a.live = btree.NewBTreeGOptions(less, opts)
	return a
}

func (a *Array[T]) ActorID() string { return a.clock.ActorID() }

func (a *Array[T]) Lamport() uint64 { return a.clock.Counter() }

// cmp is the element order: position key first, element id on ties.
func (a *Array[T]) cmp(x, y int) int {
	ex, ey := &a.slots[x], &a.slots[y]
	if c := pos.Compare(ex.pos, ey.pos); c != 0 {
		return c
	}
	return strings.Compare(ex.id, ey.id)
}

func (a *Array[T]) place(slot int) {
	a.order.SetHint(slot, &a.hint)
	if !a.slots[slot].deleted {
		a.live.Set(slot)
	}
}

// unplace must run before the slot's pos changes, the trees find it by key.
func (a *Array[T]) unplace(slot int) {
	a.order.DeleteHint(slot, &a.hint)
	if !a.slots[slot].deleted {
		a.live.Delete(slot)
	}
}

// each calls fn with every slot in element order until fn returns false.
func (a *Array[T]) each(fn func(slot int) bool) {
	a.order.Scan(fn)
}

func (a *Array[T]) add(el element[T]) {
	a.slots = append(a.slots, el)
	slot := len(a.slots) - 1
	a.index[el.id] = slot
	a.place(slot)
}

func (a *Array[T]) tombstone(slot int) {
	if el := &a.slots[slot]; !el.deleted {
		a.live.Delete(slot)
		el.deleted = true
	}
}

func (a *Array[T]) at(index int) (int, error) {
	slot, ok := a.live.GetAt(index)
	if !ok {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, a.Len())
	}
	return slot, nil
}

// allocate finds a key for a new spot at visible index, with the visible
// element at skip left out of the list (-1 leaves none out).
func (a *Array[T]) allocate(index, skip int) (string, error) {
	key := func(i int) string {
		if skip >= 0 && i >= skip {
			i++
		}
		slot, _ := a.live.GetAt(i)
		return a.slots[slot].pos
	}
	n := a.Len()
	if skip >= 0 {
		n--
	}
	var left, right string
	if index > 0 {
		left = key(index - 1)
	}
	if index < n {
		right = key(index)
	}
	if left != "" && left == right {
		// only reachable through colliding tags or foreign keys, there is
		// no key between the two; join their run
		return left, nil
	}
	p, err := pos.Between(left, right)
	if err != nil {
		return "", err
	}
	return p + a.tag, nil
}

func (a *Array[T]) Len() int {
	return a.live.Len()
}

func (a *Array[T]) Get(index int) (T, error) {
	slot, err := a.at(index)
	if err != nil {
		var zero T
		return zero, err
	}
	return a.slots[slot].value, nil
}

// ToArray returns the visible values in order.
func (a *Array[T]) ToArray() []T {
	out := make([]T, 0, a.live.Len())
	a.live.Scan(func(slot int) bool {
		out = append(out, a.slots[slot].value)
		return true
	})
	return out
}

// Insert puts value at the visible index, shifting later elements right.
// index may equal Len() to append.
func (a *Array[T]) Insert(index int, value T) error {
	if n := a.Len(); index < 0 || index > n {
		return fmt.Errorf("%w: insert at %d of %d", ErrIndexOutOfRange, index, n)
	}
	p, err := a.allocate(index, -1)
	if err != nil {
		return err
	}
	c := a.clock.Tick()
	id := c.Key()
	a.add(element[T]{id: id, pos: p, value: value, clock: c})
	a.log.Record(ol.NewInsert(c, id, p, value))
	return nil
}

func (a *Array[T]) Remove(index int) error {
	slot, err := a.at(index)
	if err != nil {
		return err
	}
	a.tombstone(slot)
	c := a.clock.Tick()
	a.log.Record(ol.NewRemove[T](c, a.slots[slot].id))
	return nil
}

// Move relocates the element at from so that it ends up at visible index to.
// The moved element is left out when picking the new neighbours.
func (a *Array[T]) Move(from, to int) error {
	n := a.Len()
	if from < 0 || from >= n {
		return fmt.Errorf("%w: move from %d of %d", ErrIndexOutOfRange, from, n)
	}
	if to < 0 || to > n-1 {
		return fmt.Errorf("%w: move to %d of %d", ErrIndexOutOfRange, to, n)
	}
	slot, _ := a.live.GetAt(from)
	p, err := a.allocate(to, from)
	if err != nil {
		return err
	}
	c := a.clock.Tick()
	a.relocate(slot, p, c)
	a.log.Record(ol.NewMove[T](c, a.slots[slot].id, p))
	return nil
}

func (a *Array[T]) relocate(slot int, p string, c lamport.Clock) {
	a.unplace(slot)
	a.slots[slot].pos = p
	a.slots[slot].posClock = c
	a.place(slot)
}

// Update replaces the value at index with fn(current).
func (a *Array[T]) Update(index int, fn func(T) T) error {
	slot, err := a.at(index)
	if err != nil {
		return err
	}
	value := fn(a.slots[slot].value)
	c := a.clock.Tick()
	el := &a.slots[slot]
	if c.Newer(el.clock) {
		el.value, el.clock = value, c
	}
	a.log.Record(ol.NewUpdate(c, el.id, value))
	return nil
}

// ExportOperations drains local operations not yet handed out.
func (a *Array[T]) ExportOperations() []ol.Operation[T] {
	return a.log.ExportOperations()
}

func validateArrayOp[T any](op ol.Operation[T]) error {
	switch op.Type {
	case ol.Insert, ol.Move:
		if op.Pos == "" {
			return fmt.Errorf("%w: %s %s has no position", ErrInvalidOperation, op.Type, op.ID())
		}
		if err := pos.Validate(op.Pos); err != nil {
			return fmt.Errorf("%s %s: %w", op.Type, op.ID(), err)
		}
	}
	switch op.Type {
	case ol.Insert, ol.Remove, ol.Update, ol.Move:
		if op.TargetID == "" {
			return fmt.Errorf("%w: %s %s has no target", ErrInvalidOperation, op.Type, op.ID())
		}
	}
	return nil
}

// ApplyRemote merges operations from other replicas and returns the ones
// that were new, in the order they were applied. Operations that fail to
// decode are skipped, left unmarked and reported together in the error; the
// rest of the batch still applies.
func (a *Array[T]) ApplyRemote(ops []ol.Operation[T]) ([]ol.Operation[T], error) {
	var errs []error
	valid := util.Filter(ops, func(op ol.Operation[T]) bool {
		if err := validateArrayOp(op); err != nil {
			a.logger.Warn("rejected remote operation", "op", op.ID(), "err", err)
			errs = append(errs, err)
			return false
		}
		return true
	})

	// lamport order is causal order, so an insert lands before anything in
	// the same batch that targets it
	fresh := ol.SortByClock(a.log.ApplyRemote(valid))
	for _, op := range fresh {
		a.clock.Observe(op.Lamport)
		a.apply(op)
	}
	a.logger.Debug("applied remote operations", "actor", a.ActorID(), "received", len(ops), "applied", len(fresh))
	return fresh, errors.Join(errs...)
}

func (a *Array[T]) apply(op ol.Operation[T]) {
	slot, known := a.index[op.TargetID]
	switch op.Type {
	case ol.Insert:
		if known {
			return
		}
		a.add(element[T]{id: op.TargetID, pos: op.Pos, value: op.Value, clock: op.Clock()})
		return
	case ol.Remove, ol.Update, ol.Move:
		if !known {
			a.logger.Debug("dropped operation for unknown element", "op", op.ID(), "type", op.Type, "target", op.TargetID)
			return
		}
	default:
		a.logger.Debug("ignored operation", "op", op.ID(), "type", op.Type)
		return
	}

	el := &a.slots[slot]
	c := op.Clock()
	switch op.Type {
	case ol.Remove:
		a.tombstone(slot)
	case ol.Update:
		if c.Newer(el.clock) {
			el.value, el.clock = op.Value, c
		}
	case ol.Move:
		if c.Newer(el.posClock) {
			a.relocate(slot, op.Pos, c)
		}
	}
}

func (a *Array[T]) String() string {
	return litter.Sdump(a.ToSnapshot())
}
