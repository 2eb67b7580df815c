package main

import (
	"context"
	"fmt"
	"os"

	"irdinv/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "irdinv:", err)
		os.Exit(1)
	}
}
