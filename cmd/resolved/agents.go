package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newAgentsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the hosted agents and their published cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logContext(flags)
			svc, err := buildServices(ctx, flags, false)
			if err != nil {
				return err
			}
			defer svc.cleanup(ctx)

			out, err := json.MarshalIndent(svc.directory.List(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
