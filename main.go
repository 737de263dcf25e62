package main

import (
	"errors"
	"fmt"
	"os"
)

// exitInterrupted is the conventional 128+SIGINT exit code, used both for
// a drained interrupt and for a forced second-signal exit.
const exitInterrupted = 130

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(exitInterrupted)
		}

		exitOnError(err)
	}
}
