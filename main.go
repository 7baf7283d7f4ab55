package main

import (
	"fmt"
	"os"

	"github.com/AnyUserName/boxshrink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "boxshrink: %s\n", cmd.Message(err))
		os.Exit(1)
	}
}
