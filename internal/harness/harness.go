// Package harness runs multi-replica scenarios against real CRDT instances.
//
// # Scenario Format
//
//	name: concurrent_front_insert
//	kind: array
//	replicas: [a, b]
//	steps:
//	  - replica: a
//	    insert: { index: 0, value: x }
//	  - replica: b
//	    insert: { index: 0, value: y }
//	  - replica: a
//	    sync: { from: b }
//	  - replica: b
//	    sync: { from: a }
//	expect:
//	  items: [x, y]
//
// Every replica keeps an outbox of the operations it knows about: its own
// exported operations and every remote operation it applied. A sync step
// delivers the source's whole outbox, so delivery is causal and repeats are
// absorbed by deduplication.
package harness

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/kevinxiao27/crdt-engine/compress"
	"github.com/kevinxiao27/crdt-engine/crdt"
	"github.com/kevinxiao27/crdt-engine/ol"
	"github.com/kevinxiao27/crdt-engine/util"
)

// State is the visible content of one replica.
type State struct {
	Items  []string          `json:"items,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s State) Equal(o State) bool {
	return slices.Equal(s.Items, o.Items) && maps.Equal(s.Fields, o.Fields)
}

// Result holds the outcome of one scenario.
type Result struct {
	Name      string           `json:"name"`
	Pass      bool             `json:"pass"`
	Converged bool             `json:"converged"`
	States    map[string]State `json:"states"`
	Errors    []string         `json:"errors,omitempty"`
}

type replica interface {
	exec(step Step) error
	export() []ol.Operation[string]
	apply(ops []ol.Operation[string]) ([]ol.Operation[string], error)
	state() State
	restart() error
}

type node struct {
	replica
	outbox []ol.Operation[string]
}

func (n *node) flush(compressed bool) {
	ops := n.export()
	if compressed {
		ops = compress.Compress(ops)
	}
	n.outbox = append(n.outbox, ops...)
}

// Harness executes scenarios with a fixed wall clock so timestamps, and
// therefore snapshots, are reproducible.
type Harness struct {
	logger util.Logger
	opts   []crdt.Option
}

func New(logger util.Logger) *Harness {
	if logger == nil {
		logger = util.NopLogger
	}
	return &Harness{
		logger: logger,
		opts: []crdt.Option{
			crdt.WithLogger(logger),
			crdt.WithNow(func() time.Time { return time.UnixMilli(0).UTC() }),
		},
	}
}

// Run executes a scenario with logging disabled.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(scenario)
}

// Run executes every step in order. A step that cannot be executed (index
// out of range, invalid batch) aborts with an error. Expectation mismatches
// are reported in the result instead.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	nodes := make(map[string]*node, len(scenario.Replicas))
	for _, id := range scenario.Replicas {
		nodes[id] = &node{replica: h.newReplica(scenario.Kind, id)}
	}

	for i, step := range scenario.Steps {
		n := nodes[step.Replica]
		action := step.Action()
		h.logger.Debug("step", "scenario", scenario.Name, "n", i+1, "replica", step.Replica, "action", action)

		var err error
		switch action {
		case "sync":
			src := nodes[step.Sync.From]
			src.flush(false)
			var fresh []ol.Operation[string]
			fresh, err = n.apply(src.outbox)
			n.outbox = append(n.outbox, fresh...)
		case "export":
			n.flush(step.Export.Compress)
		case "snapshot":
			n.flush(false)
			err = n.restart()
		default:
			err = n.exec(step)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s on %s): %w", i+1, action, step.Replica, err)
		}
	}

	result := &Result{Name: scenario.Name, States: map[string]State{}}
	for _, id := range scenario.Replicas {
		result.States[id] = nodes[id].state()
	}
	first := result.States[scenario.Replicas[0]]
	result.Converged = util.Reduce(scenario.Replicas, func(id string, ok bool) bool {
		return ok && result.States[id].Equal(first)
	}, true)

	if scenario.Expect.wantConverged() != result.Converged {
		result.Errors = append(result.Errors, fmt.Sprintf("converged = %v, want %v", result.Converged, !result.Converged))
	}
	if exp := scenario.Expect; exp != nil {
		want := State{Items: exp.Items, Fields: exp.Fields}
		for _, id := range scenario.Replicas {
			got := result.States[id]
			if exp.Items != nil && !slices.Equal(got.Items, want.Items) {
				result.Errors = append(result.Errors, fmt.Sprintf("replica %s: items = %q, want %q", id, got.Items, want.Items))
			}
			if exp.Fields != nil && !maps.Equal(got.Fields, want.Fields) {
				result.Errors = append(result.Errors, fmt.Sprintf("replica %s: fields = %v, want %v", id, got.Fields, want.Fields))
			}
		}
	}
	result.Pass = len(result.Errors) == 0
	h.logger.Info("scenario finished", "scenario", scenario.Name, "pass", result.Pass, "converged", result.Converged)
	return result, nil
}

func (h *Harness) newReplica(kind, id string) replica {
	if kind == KindObject {
		return &objectReplica{obj: crdt.NewObject[string](id, h.opts...), opts: h.opts}
	}
	return &arrayReplica{arr: crdt.NewArray[string](id, h.opts...), opts: h.opts}
}

type arrayReplica struct {
	arr  *crdt.Array[string]
	opts []crdt.Option
}

func (r *arrayReplica) exec(step Step) error {
	switch {
	case step.Insert != nil:
		return r.arr.Insert(step.Insert.Index, step.Insert.Value)
	case step.Remove != nil:
		return r.arr.Remove(*step.Remove)
	case step.Move != nil:
		return r.arr.Move(step.Move.From, step.Move.To)
	case step.Update != nil:
		value := step.Update.Value
		return r.arr.Update(step.Update.Index, func(string) string { return value })
	}
	return fmt.Errorf("%s is not an array action", step.Action())
}

func (r *arrayReplica) export() []ol.Operation[string] { return r.arr.ExportOperations() }

func (r *arrayReplica) apply(ops []ol.Operation[string]) ([]ol.Operation[string], error) {
	return r.arr.ApplyRemote(ops)
}

func (r *arrayReplica) state() State {
	return State{Items: r.arr.ToArray()}
}

func (r *arrayReplica) restart() error {
	raw, err := json.Marshal(r.arr.ToSnapshot())
	if err != nil {
		return err
	}
	var snap crdt.ArraySnapshot[string]
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	arr, err := crdt.RestoreArray(snap, r.opts...)
	if err != nil {
		return err
	}
	r.arr = arr
	return nil
}

type objectReplica struct {
	obj  *crdt.Object[string]
	opts []crdt.Option
}

func (r *objectReplica) exec(step Step) error {
	if step.Set == nil {
		return fmt.Errorf("%s is not an object action", step.Action())
	}
	r.obj.Set(step.Set.Key, step.Set.Value)
	return nil
}

func (r *objectReplica) export() []ol.Operation[string] { return r.obj.ExportOperations() }

func (r *objectReplica) apply(ops []ol.Operation[string]) ([]ol.Operation[string], error) {
	return r.obj.ApplyRemote(ops), nil
}

func (r *objectReplica) state() State {
	return State{Fields: r.obj.ToJSON()}
}

func (r *objectReplica) restart() error {
	raw, err := json.Marshal(r.obj.ToSnapshot())
	if err != nil {
		return err
	}
	var snap crdt.ObjectSnapshot[string]
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	obj, err := crdt.RestoreObject(snap, r.opts...)
	if err != nil {
		return err
	}
	r.obj = obj
	return nil
}
