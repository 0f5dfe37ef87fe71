// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package answering_machine_cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewCountCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show how many messages this client has recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter, closeLimiter, err := deps.newLimiter(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLimiter()
			ctx := cmd.Context()
			fmt.Fprintf(cmd.OutOrStdout(), "%d recorded, %d remaining of %d\n",
				limiter.Count(ctx), limiter.Remaining(ctx), limiter.Max())
			return nil
		},
	}
}

func NewResetCountCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-count",
		Short: "Clear the recording counter for this client",
		RunE: func(cmd *cobra.Command, args []string) error {
			limiter, closeLimiter, err := deps.newLimiter(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLimiter()
			if err := limiter.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("resetting counter: %w", err)
			}
			deps.Logger.Infof("recording counter reset")
			fmt.Fprintln(cmd.OutOrStdout(), "Recording counter reset.")
			return nil
		},
	}
}

func NewVersionCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", deps.Config.Name, deps.Config.Version, deps.Config.Env)
		},
	}
}
