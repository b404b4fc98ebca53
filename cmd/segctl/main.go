// Command segctl builds, inspects and queries an index directory directly,
// without the indexer and search services.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/segment-search/cmd/segctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
