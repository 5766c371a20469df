package main

import (
	"fmt"
	"log/slog"

	"github.com/sanity-io/litter"

	"github.com/kevinxiao27/crdt-engine/compress"
	"github.com/kevinxiao27/crdt-engine/crdt"
	"github.com/kevinxiao27/crdt-engine/util"
)

func main() {
	litter.Config.HidePrivateFields = false
	logger := util.NewDefaultLogger(slog.LevelInfo)

	list1 := crdt.NewArray[string]("a", crdt.WithLogger(logger))
	list2 := crdt.NewArray[string]("b", crdt.WithLogger(logger))
	must(list1.Insert(0, "buy milk"))
	must(list2.Insert(0, "call mom"))
	must(list2.Insert(1, "scratch"))
	must(list2.Update(1, func(string) string { return "scratch that" }))
	must(list2.Remove(1))

	ops1 := list1.ExportOperations()
	ops2, stats := compress.CompressWithStats(list2.ExportOperations())
	logger.Info("compressed batch", "in", stats.In, "out", stats.Out)

	_, err := list1.ApplyRemote(ops2)
	must(err)
	_, err = list2.ApplyRemote(ops1)
	must(err)

	result1 := list1.ToArray()
	result2 := list2.ToArray()
	fmt.Printf("Result: %q\n", result1)
	fmt.Printf("Result: %q\n", result2)

	if litter.Sdump(result1) == litter.Sdump(result2) {
		fmt.Println("Replicas converged")
	} else {
		fmt.Println("Replicas differ")
		litter.Dump(list1.ToSnapshot(), list2.ToSnapshot())
	}

	meta1 := crdt.NewObject[string]("a")
	meta2 := crdt.NewObject[string]("b")
	meta1.Set("title", "Groceries")
	meta2.Set("title", "Errands")
	meta1.ApplyRemote(meta2.ExportOperations())
	meta2.ApplyRemote(meta1.ExportOperations())
	fmt.Printf("Title: %s / %s\n", meta1.ToJSON()["title"], meta2.ToJSON()["title"])

	snap := list2.ToSnapshot()
	gc := compress.GCArraySnapshot(snap)
	fmt.Printf("Snapshot: %d element(s), %d after gc\n", len(snap.Elements), len(gc.Elements))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
