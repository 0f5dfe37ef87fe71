// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package answering_machine_cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	internal_limiter "github.com/rapidaai/voicemail/api/answering-machine/internal/limiter"
	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/config"
	"github.com/rapidaai/voicemail/pkg/commons"
	"github.com/rapidaai/voicemail/pkg/connectors"
)

// Dependencies is filled in by the root command before any subcommand runs.
type Dependencies struct {
	Config *config.AppConfig
	Logger commons.Logger
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "answering-machine",
		Short:         "Record a voice message and drop it into cloud storage",
		Long:          "An answering machine for the terminal: record a short voice message and upload it through a one-time link issued by the upload-link service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// the recorder owns the terminal, so its logs only go to file
			return deps.load(cmd.Name() != recordCmdName)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if deps.Logger != nil {
				_ = deps.Logger.Sync()
			}
		},
	}

	rootCmd.AddCommand(NewServeCmd(deps))
	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))
	rootCmd.AddCommand(NewCountCmd(deps))
	rootCmd.AddCommand(NewResetCountCmd(deps))
	rootCmd.AddCommand(NewVersionCmd(deps))
	return rootCmd
}

func (deps *Dependencies) load(console bool) error {
	vConfig, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
		commons.Console(console),
	)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	deps.Config = cfg
	deps.Logger = logger
	return nil
}

// newLimiter opens the configured counter store. The returned close func
// disconnects redis when the redis store is in use.
func (deps *Dependencies) newLimiter(ctx context.Context) (internal_type.Limiter, func(), error) {
	var rc connectors.RedisConnector
	closeFn := func() {}
	if deps.Config.LimiterConfig.Store == internal_limiter.StoreRedis {
		rc = connectors.NewRedisConnector(&deps.Config.RedisConfig, deps.Logger)
		if err := rc.Connect(ctx); err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { _ = rc.Disconnect(context.Background()) }
	}
	store, err := internal_limiter.NewCounterStore(&deps.Config.LimiterConfig, rc, deps.Logger)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return internal_limiter.NewRecordingLimiter(store, deps.Config.MaxRecordings, deps.Logger), closeFn, nil
}
