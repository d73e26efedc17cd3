// Command andadb is the knowledge-memory database engine's CLI: it runs
// KIP statements against a local graph directly, or against a running
// daemon that keeps the graph's indexes warm across invocations.
package main

import (
	"fmt"
	"os"

	"github.com/andalabs/andadb/cmd/andadb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
