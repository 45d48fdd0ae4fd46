package main

import (
	"fmt"
	"os"

	"foodgram/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
