// Command submittal reviews construction submittals against a corpus of
// engineering standards.
package main

import (
	"os"

	"github.com/custodia-labs/submittal-review/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute(newApp().wiring()))
}
