// finboard-worker is the sync worker entrypoint for deployments that run it
// as its own image. It is equivalent to "finboard worker".
package main

import (
	"os"

	"finboard/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	root.SetArgs(append([]string{"worker"}, os.Args[1:]...))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
