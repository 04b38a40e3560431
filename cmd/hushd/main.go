package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// A cancelled context is an orderly shutdown, not a failure worth
		// printing twice.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "hushd: %v\n", err)
		}
		os.Exit(1)
	}
}
