// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package answering_machine_cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	internal_capture "github.com/rapidaai/voicemail/api/answering-machine/internal/capture"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !doctor(cmd.Context(), deps, cmd.OutOrStdout()) {
				return fmt.Errorf("some prerequisites are missing")
			}
			return nil
		},
	}
}

func check(out io.Writer, name string, ok bool, detail string) {
	mark := "✓"
	if !ok {
		mark = "✗"
	}
	fmt.Fprintf(out, "  %s %-20s %s\n", mark, name, detail)
}

func doctor(ctx context.Context, deps *Dependencies, out io.Writer) bool {
	cfg := deps.Config
	ok := true

	support := internal_capture.CheckSupport(&cfg.CaptureConfig)
	if support.Supported {
		check(out, "Microphone backend", true, cfg.CaptureConfig.Backend)
	} else {
		check(out, "Microphone backend", false, support.Reason)
		ok = false
	}

	limiter, closeLimiter, err := deps.newLimiter(ctx)
	if err != nil {
		check(out, "Recording counter", false, err.Error())
		ok = false
	} else {
		defer closeLimiter()
		check(out, "Recording counter", true,
			fmt.Sprintf("%s store, %d of %d used", cfg.LimiterConfig.Store, limiter.Count(ctx), limiter.Max()))
	}

	if reachable, detail := checkUploadLink(ctx, cfg.UploadLinkURL); reachable {
		check(out, "Upload-link service", true, detail)
	} else {
		check(out, "Upload-link service", false, detail)
		ok = false
	}

	if ok {
		fmt.Fprintln(out, "\nAll prerequisites met. Ready to record!")
	} else {
		fmt.Fprintln(out, "\nSome prerequisites are missing.")
	}
	return ok
}

func checkUploadLink(ctx context.Context, baseURL string) (bool, string) {
	resp, err := resty.New().
		SetTimeout(5 * time.Second).
		R().
		SetContext(ctx).
		Get(strings.TrimRight(baseURL, "/") + "/healthz/")
	if err != nil {
		return false, fmt.Sprintf("unreachable at %s", baseURL)
	}
	if resp.StatusCode() != http.StatusOK {
		return false, fmt.Sprintf("%s answered %d", baseURL, resp.StatusCode())
	}
	return true, baseURL
}
