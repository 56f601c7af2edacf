package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-overseer/overseer"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [ADDR...]",
		Short: "Show the reservation state of every port",
		Long:  "Show the reservation state of every port of each chassis. Without arguments the addresses of the configuration file are used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs := args
			if len(addrs) == 0 {
				addrs = ctx.config.Addresses
			}
			if len(addrs) == 0 {
				return errors.New("no chassis address given")
			}

			return ctx.withOverseer(cmd.Context(), addrs, func(o *overseer.Overseer) error {
				_ = o.RefreshAll(cmd.Context())

				return printOverview(cmd, o, addrs)
			})
		},
	}
}

// printOverview prints a table per listed chassis and a line per failed one, in argument order.
func printOverview(cmd *cobra.Command, o *overseer.Overseer, addrs []string) error {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	failures := o.Failures()

	failed := 0
	seen := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		if seen[addr] {
			continue
		}
		seen[addr] = true

		if err, ok := failures[addr]; ok {
			failed++
			fmt.Fprintf(out, "%s: %v\n", addr, err)

			continue
		}

		dir, ok := o.Directory(addr)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "%s (%d ports)\n", addr, dir.Len())
		fmt.Fprintln(out, renderDirectory(dir, colorize))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d chassis failed", failed, len(seen))
	}

	return nil
}
