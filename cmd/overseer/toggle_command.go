package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-overseer/overseer"
)

func newToggleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle ADDR M/P",
		Short: "Reserve, release or relinquish one port",
		Long: "Toggle the reservation of port M/P: a released port is reserved, a port reserved by you is " +
			"released and a port reserved by another owner is relinquished.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			module, port, err := parsePortArg(args[1])
			if err != nil {
				return err
			}

			return ctx.withOverseer(cmd.Context(), []string{addr}, func(o *overseer.Overseer) error {
				if err, failed := o.Failures()[addr]; failed {
					return err
				}

				dir, err := o.Refresh(cmd.Context(), addr)
				if err != nil {
					return err
				}

				st, ok := dir.Get(module, port)
				if !ok {
					return fmt.Errorf("port %d/%d not found on %s", module, port, addr)
				}
				verb, err := st.Lock.Action()
				if err != nil {
					return err
				}

				dir, err = o.Toggle(cmd.Context(), addr, st.Lock, module, port)
				if err != nil {
					return fmt.Errorf("%s %d/%d: %w", verb.Label(), module, port, err)
				}

				out := cmd.OutOrStdout()
				after, _ := dir.Get(module, port)
				fmt.Fprintf(out, "%s %d/%d: %s -> %s\n", verb.Label(), module, port, st.Lock, after.Lock)
				fmt.Fprintln(out, renderDirectory(dir, shouldColorize(out)))

				return nil
			})
		},
	}
}

// parsePortArg parses "M/P" with decimal ids in 0..255.
func parsePortArg(arg string) (uint8, uint8, error) {
	m, p, ok := strings.Cut(strings.TrimSpace(arg), "/")
	if !ok {
		return 0, 0, fmt.Errorf("invalid port %q: expected M/P", arg)
	}

	module, err := strconv.ParseUint(m, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid module in %q: %w", arg, err)
	}
	port, err := strconv.ParseUint(p, 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port in %q: %w", arg, err)
	}

	return uint8(module), uint8(port), nil
}
