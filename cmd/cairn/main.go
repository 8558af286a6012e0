// Package main is the entry point for the cairn environment manager.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/cairn/cmd/cairn/commands"
	"go.trai.ch/cairn/internal/app"
	"go.trai.ch/cairn/internal/core/domain"
	_ "go.trai.ch/cairn/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		// Logger is not available if initialization failed.
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	cli := commands.New(components.App)
	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrBuildFailure) {
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
