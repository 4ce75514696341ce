// fabdeploy orchestrates the disaggregation of local storage into an
// NVMe-oF fabric: exports, aggregator attachment, the Opus aggregate
// and downstream re-exports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/xidis/fabdeploy/cmd/fabdeploy/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		log.Error().Err(err).Msg("fabdeploy failed")
		os.Exit(commands.ExitCode(err))
	}
}
