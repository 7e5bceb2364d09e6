// Command gridwatch is the Agent/Hub daemon and CLI for the gridwatch
// observability-and-remediation fabric.
package main

import (
	"fmt"
	"os"

	"github.com/gridwatch/gridwatch/cmd/gridwatch/commands"
)

func main() {
	err := commands.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(commands.ExitCode(err))
}
