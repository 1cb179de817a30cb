package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rpggio/feedsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "feedsync: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
