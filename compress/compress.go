// Package compress reduces operation batches and array snapshots to smaller
// equivalent forms.
package compress

import (
	"slices"
	"strings"

	"github.com/kevinxiao27/crdt-engine/crdt"
	"github.com/kevinxiao27/crdt-engine/lamport"
	"github.com/kevinxiao27/crdt-engine/ol"
	"github.com/kevinxiao27/crdt-engine/pos"
)

type Stats struct {
	In      int `json:"in"`
	Out     int `json:"out"`
	Dropped int `json:"dropped"`
}

func newer[T any](cur *ol.Operation[T], cand ol.Operation[T]) *ol.Operation[T] {
	if cur == nil || cand.Clock().Newer(cur.Clock()) {
		return &cand
	}
	return cur
}

type history[T any] struct {
	insert *ol.Operation[T]
	remove *ol.Operation[T]
	update *ol.Operation[T]
	move   *ol.Operation[T]
}

// Compress returns the smallest batch with the same effect as ops:
//   - an element inserted and removed inside the batch disappears entirely
//   - an insert absorbs the newest update value and the newest move position
//     and is stamped with the newest clock among them
//   - otherwise one remove, one newest update and one newest move per element
//   - one newest obj_set per key
//
// The output is sorted by (lamport, actorId).
func Compress[T any](ops []ol.Operation[T]) []ol.Operation[T] {
	elems := map[string]*history[T]{}
	sets := map[string]*ol.Operation[T]{}
	for _, op := range ops {
		if op.Type == ol.ObjSet {
			sets[op.Key] = newer(sets[op.Key], op)
			continue
		}
		h := elems[op.TargetID]
		if h == nil {
			h = &history[T]{}
			elems[op.TargetID] = h
		}
		switch op.Type {
		case ol.Insert:
			if h.insert == nil {
				h.insert = &op
			}
		case ol.Remove:
			if h.remove == nil || op.Clock().Compare(h.remove.Clock()) < 0 {
				h.remove = &op
			}
		case ol.Update:
			h.update = newer(h.update, op)
		case ol.Move:
			h.move = newer(h.move, op)
		}
	}

	out := make([]ol.Operation[T], 0, len(elems)+len(sets))
	for _, h := range elems {
		switch {
		case h.insert != nil && h.remove != nil:
			// net zero
		case h.remove != nil:
			out = append(out, *h.remove)
		case h.insert != nil:
			out = append(out, fold(h))
		default:
			if h.update != nil {
				out = append(out, *h.update)
			}
			if h.move != nil {
				out = append(out, *h.move)
			}
		}
	}
	for _, op := range sets {
		out = append(out, *op)
	}
	return ol.SortByClock(out)
}

// fold merges an insert with its newest update and move. The result carries
// one clock, the newest of the three; a receiver keeps it as the value clock
// even when it came from the move.
func fold[T any](h *history[T]) ol.Operation[T] {
	ins := *h.insert
	stamp := ins.Clock()
	if h.update != nil {
		ins.Value = h.update.Value
		stamp = maxClock(stamp, h.update.Clock())
	}
	if h.move != nil {
		ins.Pos = h.move.Pos
		stamp = maxClock(stamp, h.move.Clock())
	}
	ins.Lamport, ins.Timestamp, ins.ActorID = stamp.Lamport, stamp.Timestamp, stamp.ActorID
	return ins
}

func maxClock(a, b lamport.Clock) lamport.Clock {
	if b.Newer(a) {
		return b
	}
	return a
}

// CompressWithStats is Compress plus counts for reporting.
func CompressWithStats[T any](ops []ol.Operation[T]) ([]ol.Operation[T], Stats) {
	out := Compress(ops)
	return out, Stats{In: len(ops), Out: len(out), Dropped: len(ops) - len(out)}
}

// GCArraySnapshot drops tombstones and re-sorts by position. Only safe once
// every replica has applied the removes behind those tombstones: a late
// insert for a collected id would bring the element back.
func GCArraySnapshot[T any](snap crdt.ArraySnapshot[T]) crdt.ArraySnapshot[T] {
	kept := make([]crdt.ElementData[T], 0, len(snap.Elements))
	for _, el := range snap.Elements {
		if el.Deleted {
			continue
		}
		kept = append(kept, el)
	}
	slices.SortFunc(kept, func(a, b crdt.ElementData[T]) int {
		if c := pos.Compare(a.Pos, b.Pos); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return crdt.ArraySnapshot[T]{
		ActorID:  snap.ActorID,
		Lamport:  snap.Lamport,
		Elements: kept,
	}
}
