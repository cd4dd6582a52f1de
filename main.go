package main

import (
	"context"
	"errors"
	"os"
)

func main() {
	ctx := shutdownContext(context.Background())

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, errVerifyMismatch) {
			os.Exit(1)
		}

		exitOnError(err)
	}
}
