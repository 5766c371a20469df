package ol

import (
	"slices"

	"github.com/kevinxiao27/crdt-engine/lamport"
)

type OpType string

const (
	Insert OpType = "insert"
	Remove OpType = "remove"
	Update OpType = "update"
	Move   OpType = "move"
	ObjSet OpType = "obj_set"
)

// Operation is the only message replicas exchange. Which of TargetID, Pos,
// Value and Key are meaningful depends on Type.
type Operation[T any] struct {
	Type      OpType `json:"type"`
	TargetID  string `json:"targetId,omitempty"` // insert, remove, update, move
	Pos       string `json:"pos,omitempty"`      // insert, move
	Value     T      `json:"value,omitempty"`    // insert, update, obj_set
	Key       string `json:"key,omitempty"`      // obj_set
	Timestamp int64  `json:"timestamp"`
	Lamport   uint64 `json:"lamport"`
	ActorID   string `json:"actorId"`
}

func (op Operation[T]) Clock() lamport.Clock {
	return lamport.Clock{Lamport: op.Lamport, Timestamp: op.Timestamp, ActorID: op.ActorID}
}

// ID is the actorId:lamport pair, unique per operation.
func (op Operation[T]) ID() string {
	return lamport.Key(op.ActorID, op.Lamport)
}

func (op *Operation[T]) stamp(c lamport.Clock) {
	op.Lamport, op.Timestamp, op.ActorID = c.Lamport, c.Timestamp, c.ActorID
}

func NewInsert[T any](c lamport.Clock, targetID, pos string, value T) Operation[T] {
	op := Operation[T]{Type: Insert, TargetID: targetID, Pos: pos, Value: value}
	op.stamp(c)
	return op
}

func NewRemove[T any](c lamport.Clock, targetID string) Operation[T] {
	op := Operation[T]{Type: Remove, TargetID: targetID}
	op.stamp(c)
	return op
}

func NewUpdate[T any](c lamport.Clock, targetID string, value T) Operation[T] {
	op := Operation[T]{Type: Update, TargetID: targetID, Value: value}
	op.stamp(c)
	return op
}

func NewMove[T any](c lamport.Clock, targetID, pos string) Operation[T] {
	op := Operation[T]{Type: Move, TargetID: targetID, Pos: pos}
	op.stamp(c)
	return op
}

func NewObjSet[T any](c lamport.Clock, key string, value T) Operation[T] {
	op := Operation[T]{Type: ObjSet, Key: key, Value: value}
	op.stamp(c)
	return op
}

// SortByClock orders ops by (lamport, actorId) for deterministic replay.
func SortByClock[T any](ops []Operation[T]) []Operation[T] {
	slices.SortStableFunc(ops, func(a, b Operation[T]) int {
		return a.Clock().Compare(b.Clock())
	})
	return ops
}
