// Command pipemap maps integration pipelines and the systems they call.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pipemap/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
