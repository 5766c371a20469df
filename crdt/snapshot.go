package crdt

import (
	"fmt"

	"github.com/kevinxiao27/crdt-engine/lamport"
	"github.com/kevinxiao27/crdt-engine/pos"
)

// ElementData is one array element in a snapshot, tombstones included.
type ElementData[T any] struct {
	ID       string         `json:"id"`
	Pos      string         `json:"pos"`
	Value    T              `json:"value"`
	Deleted  bool           `json:"deleted,omitempty"`
	Clock    lamport.Clock  `json:"clock"`
	PosClock *lamport.Clock `json:"posClock,omitempty"`
}

type ArraySnapshot[T any] struct {
	ActorID  string           `json:"actorId"`
	Lamport  uint64           `json:"lamport"`
	Elements []ElementData[T] `json:"elements"`
}

type ObjectSnapshot[V any] struct {
	ActorID string              `json:"actorId"`
	Lamport uint64              `json:"lamport"`
	Fields  map[string]Field[V] `json:"fields"`
}

// ToSnapshot dumps the full state in element order. Unsent operations and
// the set of applied operation ids are not part of it.
func (a *Array[T]) ToSnapshot() ArraySnapshot[T] {
	snap := ArraySnapshot[T]{
		ActorID:  a.ActorID(),
		Lamport:  a.Lamport(),
		Elements: make([]ElementData[T], 0, a.order.Len()),
	}
	a.each(func(slot int) bool {
		el := &a.slots[slot]
		data := ElementData[T]{
			ID:      el.id,
			Pos:     el.pos,
			Value:   el.value,
			Deleted: el.deleted,
			Clock:   el.clock,
		}
		if !el.posClock.IsZero() {
			pc := el.posClock
			data.PosClock = &pc
		}
		snap.Elements = append(snap.Elements, data)
		return true
	})
	return snap
}

// RestoreArray rebuilds an array from a snapshot. The element order is
// re-derived from the position keys rather than trusted from the input.
func RestoreArray[T any](snap ArraySnapshot[T], opts ...Option) (*Array[T], error) {
	cfg := newConfig(snap.ActorID, opts)
	if cfg.actorID == "" {
		return nil, fmt.Errorf("%w: no actor id", ErrInvalidSnapshot)
	}
	counter := snap.Lamport
	for _, data := range snap.Elements {
		counter = max(counter, data.Clock.Lamport)
		if data.PosClock != nil {
			counter = max(counter, data.PosClock.Lamport)
		}
	}

	a := newArray[T](cfg, counter)
	a.slots = make([]element[T], 0, len(snap.Elements))
	for _, data := range snap.Elements {
		if data.ID == "" || data.Pos == "" {
			return nil, fmt.Errorf("%w: element %q without id or position", ErrInvalidSnapshot, data.ID)
		}
		if err := pos.Validate(data.Pos); err != nil {
			return nil, fmt.Errorf("element %s: %w", data.ID, err)
		}
		if _, dup := a.index[data.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate element %s", ErrInvalidSnapshot, data.ID)
		}
		el := element[T]{
			id:      data.ID,
			pos:     data.Pos,
			value:   data.Value,
			deleted: data.Deleted,
			clock:   data.Clock,
		}
		if data.PosClock != nil {
			el.posClock = *data.PosClock
		}
		a.add(el)
	}
	return a, nil
}

func (o *Object[V]) ToSnapshot() ObjectSnapshot[V] {
	fields := make(map[string]Field[V], len(o.fields))
	for k, f := range o.fields {
		fields[k] = f
	}
	return ObjectSnapshot[V]{
		ActorID: o.ActorID(),
		Lamport: o.Lamport(),
		Fields:  fields,
	}
}

func RestoreObject[V any](snap ObjectSnapshot[V], opts ...Option) (*Object[V], error) {
	cfg := newConfig(snap.ActorID, opts)
	if cfg.actorID == "" {
		return nil, fmt.Errorf("%w: no actor id", ErrInvalidSnapshot)
	}
	counter := snap.Lamport
	for _, f := range snap.Fields {
		counter = max(counter, f.Clock.Lamport)
	}
	o := newObject[V](cfg, counter)
	for k, f := range snap.Fields {
		o.fields[k] = f
	}
	return o, nil
}
