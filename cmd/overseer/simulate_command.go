package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-overseer/internal/xenasim"
	"github.com/arloliu/go-overseer/logger"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var listen string
	var modules, ports int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run an in-process chassis simulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sim, err := xenasim.NewServer(runCtx, listen,
				xenasim.WithPassword(ctx.config.Password),
				xenasim.WithLayout(modules, ports),
				xenasim.WithLogger(logger.GetLogger()),
			)
			if err != nil {
				return fmt.Errorf("start simulator: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "simulating %d modules x %d ports on %s\n", modules, ports, sim.Addr())

			<-runCtx.Done()

			closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			return sim.Close(closeCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:22611", "Listen address")
	cmd.Flags().IntVar(&modules, "modules", 2, "Number of modules")
	cmd.Flags().IntVar(&ports, "ports", 4, "Number of ports per module")

	return cmd
}
