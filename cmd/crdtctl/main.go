package main

import (
	"os"

	"github.com/kevinxiao27/crdt-engine/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
