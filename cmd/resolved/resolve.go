package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/parcelops/resolve/runtime/supervisor"
)

func newResolveCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [exception.json]",
		Short: "Resolve one delivery exception",
		Long: `Resolve reads a delivery exception as JSON from the given file (or stdin
when omitted), runs the supervisor's resolution loop against the hosted
specialist agents, and prints the resolution summary as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logContext(flags)
			exc, err := readException(args)
			if err != nil {
				return err
			}

			svc, err := buildServices(ctx, flags, true)
			if err != nil {
				return err
			}
			defer svc.cleanup(ctx)

			summary, err := svc.supervisor.Resolve(ctx, exc, flags.tenant)
			if err != nil {
				// The summary is still emitted: the loop degraded but the
				// exception was not left unresolved.
				log.Printf(ctx, "resolution degraded: %v", err)
			}
			out, merr := json.MarshalIndent(summary, "", "  ")
			if merr != nil {
				return merr
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}

func readException(args []string) (supervisor.Exception, error) {
	var r io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return supervisor.Exception{}, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	var exc supervisor.Exception
	if err := json.NewDecoder(r).Decode(&exc); err != nil {
		return supervisor.Exception{}, fmt.Errorf("decode exception: %w", err)
	}
	return exc, nil
}
