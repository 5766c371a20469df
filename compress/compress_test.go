package compress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinxiao27/crdt-engine/crdt"
	"github.com/kevinxiao27/crdt-engine/lamport"
	"github.com/kevinxiao27/crdt-engine/ol"
)

func clk(actor string, n uint64) lamport.Clock {
	return lamport.Clock{Lamport: n, ActorID: actor}
}

func TestNetZeroElement(t *testing.T) {
	ops := []ol.Operation[string]{
		ol.NewInsert(clk("a", 1), "a:1", "V", "v1"),
		ol.NewUpdate(clk("a", 2), "a:1", "v2"),
		ol.NewRemove[string](clk("a", 3), "a:1"),
	}
	assert.Empty(t, Compress(ops))
}

func TestFoldIntoInsert(t *testing.T) {
	ops := []ol.Operation[string]{
		ol.NewInsert(clk("a", 1), "a:1", "V", "v1"),
		ol.NewUpdate(clk("a", 2), "a:1", "v2"),
		ol.NewMove[string](clk("a", 3), "a:1", "F"),
		ol.NewUpdate(clk("a", 4), "a:1", "v3"),
	}
	out := Compress(ops)
	require.Len(t, out, 1)
	assert.Equal(t, ol.Insert, out[0].Type)
	assert.Equal(t, "a:1", out[0].TargetID)
	assert.Equal(t, "v3", out[0].Value)
	assert.Equal(t, "F", out[0].Pos)
	assert.Equal(t, clk("a", 4), out[0].Clock())
}

func TestNewestWritesWithoutInsert(t *testing.T) {
	ops := []ol.Operation[int]{
		ol.NewUpdate(clk("b", 7), "a:1", 70),
		ol.NewUpdate(clk("a", 9), "a:1", 90),
		ol.NewUpdate(clk("c", 8), "a:1", 80),
		ol.NewMove[int](clk("a", 5), "a:1", "F"),
		ol.NewMove[int](clk("b", 5), "a:1", "W"),
		ol.NewRemove[int](clk("a", 6), "a:2"),
		ol.NewRemove[int](clk("b", 6), "a:2"),
		ol.NewUpdate(clk("a", 3), "a:2", 1),
	}
	out := Compress(ops)
	require.Len(t, out, 3)
	assert.Equal(t, "b:5", out[0].ID())
	assert.Equal(t, "W", out[0].Pos)
	assert.Equal(t, ol.Remove, out[1].Type)
	assert.Equal(t, "a:6", out[1].ID())
	assert.Equal(t, 90, out[2].Value)
}

func TestObjSetKeepsNewest(t *testing.T) {
	ops := []ol.Operation[string]{
		ol.NewObjSet(clk("a", 1), "title", "one"),
		ol.NewObjSet(clk("b", 3), "title", "three"),
		ol.NewObjSet(clk("a", 2), "title", "two"),
		ol.NewObjSet(clk("a", 4), "owner", "a"),
	}
	out := Compress(ops)
	require.Len(t, out, 2)
	assert.Equal(t, "three", out[0].Value)
	assert.Equal(t, "owner", out[1].Key)
}

func TestCompressedBatchIsEquivalent(t *testing.T) {
	a := crdt.NewArray[string]("a")
	require.NoError(t, a.Insert(0, "x"))
	require.NoError(t, a.Insert(1, "y"))
	require.NoError(t, a.Insert(2, "gone"))
	require.NoError(t, a.Update(0, func(string) string { return "X" }))
	require.NoError(t, a.Move(1, 0))
	require.NoError(t, a.Update(0, func(string) string { return "Y" }))
	require.NoError(t, a.Remove(2))
	ops := a.ExportOperations()

	out, stats := CompressWithStats(ops)
	assert.Equal(t, Stats{In: 7, Out: 2, Dropped: 5}, stats)

	full := crdt.NewArray[string]("r1")
	_, err := full.ApplyRemote(ops)
	require.NoError(t, err)
	short := crdt.NewArray[string]("r2")
	_, err = short.ApplyRemote(out)
	require.NoError(t, err)

	assert.Equal(t, []string{"Y", "X"}, full.ToArray())
	assert.Equal(t, full.ToArray(), short.ToArray())

	visible := func(snap crdt.ArraySnapshot[string]) (out []crdt.ElementData[string]) {
		for _, el := range snap.Elements {
			if !el.Deleted {
				el.PosClock = nil
				out = append(out, el)
			}
		}
		return out
	}
	assert.Equal(t, visible(full.ToSnapshot()), visible(short.ToSnapshot()))
}

func TestFoldMoveAfterUpdate(t *testing.T) {
	a := crdt.NewArray[string]("a")
	require.NoError(t, a.Insert(0, "x"))
	require.NoError(t, a.Insert(1, "y"))
	require.NoError(t, a.Update(0, func(string) string { return "X" }))
	require.NoError(t, a.Move(0, 1))
	out := Compress(a.ExportOperations())
	require.Len(t, out, 2)

	r := crdt.NewArray[string]("r")
	_, err := r.ApplyRemote(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "X"}, r.ToArray())
	assert.Equal(t, a.ToArray(), r.ToArray())

	origin := a.ToSnapshot().Elements[1]
	got := r.ToSnapshot().Elements[1]
	assert.Equal(t, origin.Pos, got.Pos)
	assert.Equal(t, uint64(3), origin.Clock.Lamport)
	require.NotNil(t, origin.PosClock)
	assert.Equal(t, uint64(4), origin.PosClock.Lamport)

	// one clock on the wire: the move's becomes the value clock
	assert.Equal(t, uint64(4), got.Clock.Lamport)
	assert.Nil(t, got.PosClock)
}

func TestGCArraySnapshot(t *testing.T) {
	a := crdt.NewArray[string]("a")
	require.NoError(t, a.Insert(0, "keep"))
	require.NoError(t, a.Insert(1, "drop"))
	require.NoError(t, a.Insert(2, "also keep"))
	require.NoError(t, a.Remove(1))
	ops := a.ExportOperations()

	snap := a.ToSnapshot()
	require.Len(t, snap.Elements, 3)
	// scramble the input order, gc re-sorts
	snap.Elements[0], snap.Elements[2] = snap.Elements[2], snap.Elements[0]

	gc := GCArraySnapshot(snap)
	require.Len(t, gc.Elements, 2)
	assert.Equal(t, "keep", gc.Elements[0].Value)
	assert.Equal(t, "also keep", gc.Elements[1].Value)
	assert.Equal(t, snap.Lamport, gc.Lamport)

	restored, err := crdt.RestoreArray(gc)
	require.NoError(t, err)
	assert.Equal(t, a.ToArray(), restored.ToArray())

	// a replica that never saw the remove brings the element back: the caller
	// has to guarantee every replica applied it before collecting
	_, err = restored.ApplyRemote(ops[1:2])
	require.NoError(t, err)
	assert.Equal(t, []string{"keep", "drop", "also keep"}, restored.ToArray())
}
