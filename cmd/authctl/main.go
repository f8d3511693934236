package main

import (
	"fmt"
	"os"

	"git.sr.ht/~jakintosh/authclient/internal/cli"
)

func main() {
	root := cli.NewRootCommand(cli.DefaultOptions())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
