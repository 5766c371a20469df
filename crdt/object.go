package crdt

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/sanity-io/litter"

	"github.com/kevinxiao27/crdt-engine/lamport"
	"github.com/kevinxiao27/crdt-engine/ol"
	"github.com/kevinxiao27/crdt-engine/util"
)

// Field is a last-writer-wins register.
type Field[V any] struct {
	Value V             `json:"value"`
	Clock lamport.Clock `json:"clock"`
}

// Object is a map of last-writer-wins registers. Not safe for concurrent use.
type Object[V any] struct {
	fields map[string]Field[V]
	clock  *lamport.LocalClock
	log    *ol.Log[V]
	logger util.Logger
}

func NewObject[V any](actorID string, opts ...Option) *Object[V] {
	return newObject[V](newConfig(actorID, opts), 0)
}

func newObject[V any](cfg config, counter uint64) *Object[V] {
	return &Object[V]{
		fields: map[string]Field[V]{},
		clock:  cfg.clock(counter),
		log:    ol.NewLog[V](),
		logger: cfg.logger,
	}
}

func (o *Object[V]) ActorID() string { return o.clock.ActorID() }

func (o *Object[V]) Lamport() uint64 { return o.clock.Counter() }

// merge keeps the newer of the stored field and the candidate.
func (o *Object[V]) merge(key string, value V, c lamport.Clock) bool {
	if f, ok := o.fields[key]; ok && !c.Newer(f.Clock) {
		return false
	}
	o.fields[key] = Field[V]{Value: value, Clock: c}
	return true
}

// Set writes key locally. The operation is recorded even if an existing
// field were to win the comparison.
func (o *Object[V]) Set(key string, value V) {
	c := o.clock.Tick()
	o.merge(key, value, c)
	o.log.Record(ol.NewObjSet(c, key, value))
}

func (o *Object[V]) Get(key string) (V, bool) {
	f, ok := o.fields[key]
	return f.Value, ok
}

// Update sets key to fn(current, present).
func (o *Object[V]) Update(key string, fn func(V, bool) V) {
	cur, ok := o.Get(key)
	o.Set(key, fn(cur, ok))
}

// Keys returns the keys in sorted order.
func (o *Object[V]) Keys() []string {
	return slices.Sorted(maps.Keys(o.fields))
}

func (o *Object[V]) Len() int {
	return len(o.fields)
}

// ToJSON flattens the registers to plain values.
func (o *Object[V]) ToJSON() map[string]V {
	out := make(map[string]V, len(o.fields))
	for k, f := range o.fields {
		out[k] = f.Value
	}
	return out
}

func (o *Object[V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.ToJSON())
}

func (o *Object[V]) ExportOperations() []ol.Operation[V] {
	return o.log.ExportOperations()
}

// ApplyRemote merges obj_set operations from other replicas and returns the
// ones that were new. Other operation types are skipped.
func (o *Object[V]) ApplyRemote(ops []ol.Operation[V]) []ol.Operation[V] {
	fresh := o.log.ApplyRemote(ops)
	for _, op := range fresh {
		o.clock.Observe(op.Lamport)
		if op.Type != ol.ObjSet {
			o.logger.Debug("ignored operation", "op", op.ID(), "type", op.Type)
			continue
		}
		o.merge(op.Key, op.Value, op.Clock())
	}
	o.logger.Debug("applied remote operations", "actor", o.ActorID(), "received", len(ops), "applied", len(fresh))
	return fresh
}

func (o *Object[V]) String() string {
	return litter.Sdump(o.ToSnapshot())
}
