package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"hdx/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, formatError(err))
		}
		os.Exit(1)
	}
}

func formatError(err error) string {
	if kind := services.Kind(err); kind != "" && kind != "unknown" {
		return fmt.Sprintf("error (%s): %v", kind, err)
	}
	return fmt.Sprintf("error: %v", err)
}
