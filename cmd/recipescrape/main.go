// Package main is the entry point for the recipescrape CLI.
package main

import (
	"context"
	stderr "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/recipescrape/recipescrape/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := Execute(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

// describe prefers the user facing message of structured errors.
func describe(err error) string {
	var e *errors.Error
	if stderr.As(err, &e) && e.UserFacing {
		return e.UserFacingMessage() + ": " + err.Error()
	}
	return err.Error()
}
