// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package answering_machine_cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	internal_capture "github.com/rapidaai/voicemail/api/answering-machine/internal/capture"
	internal_controller "github.com/rapidaai/voicemail/api/answering-machine/internal/controller"
	internal_display "github.com/rapidaai/voicemail/api/answering-machine/internal/display"
	internal_upload "github.com/rapidaai/voicemail/api/answering-machine/internal/upload"
)

const recordCmdName = "record"

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   recordCmdName,
		Short: "Open the answering machine and record messages",
		Long:  "Press enter to start recording, enter again to stop and upload. Recording stops by itself at the configured maximum duration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return record(ctx, deps, os.Stdin, os.Stdout)
		},
	}
}

func record(ctx context.Context, deps *Dependencies, in io.Reader, out io.Writer) error {
	cfg, logger := deps.Config, deps.Logger

	support := internal_capture.CheckSupport(&cfg.CaptureConfig)
	if !support.Supported {
		return fmt.Errorf("recording is not supported here: %s", support.Reason)
	}
	capture, err := internal_capture.NewCaptureSession(&cfg.CaptureConfig, logger)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := deps.newLimiter(ctx)
	if err != nil {
		return err
	}
	defer closeLimiter()

	uploader := internal_upload.NewUploadPipeline(cfg.UploadLinkURL, logger,
		internal_upload.WithClientId(cfg.LimiterConfig.ClientId))
	controller := internal_controller.NewRecordingController(logger, capture, limiter, uploader, cfg.MaxRecordingDuration())

	renderer := internal_display.NewRenderer(out, cfg.DisplayTitle, controller, limiter.Remaining, logger)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renderer.Run(runCtx)
	}()

	toggle(runCtx, controller, in, &wg)
	cancel()

	controller.Teardown(context.Background())
	wg.Wait()
	renderer.Draw(context.Background())
	logger.Infof("answering machine closed")
	return nil
}

// toggle reads lines from in until EOF, "q" or ctx is done. Each bare enter
// starts a recording, or stops the one in progress. Start and Stop block on
// the microphone and the upload, so they run off the input loop.
func toggle(ctx context.Context, controller internal_controller.Controller, in io.Reader, wg *sync.WaitGroup) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "q", "quit", "exit":
				return
			}
			wg.Add(1)
			go func(recording bool) {
				defer wg.Done()
				if recording {
					controller.Stop(ctx)
					return
				}
				controller.Start(ctx)
			}(controller.Snapshot().IsRecording())
		}
	}
}
