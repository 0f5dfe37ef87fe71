// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_display

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	internal_type "github.com/rapidaai/voicemail/api/answering-machine/internal/type"
	"github.com/rapidaai/voicemail/pkg/commons"
)

const (
	panelWidth = 46

	MessageMaxDuration = "Maximum recording time reached."
	clearScreen        = "\033[H\033[2J"
)

var reelFrames = []string{"|", "/", "-", "\\"}

// Source is what the display reads from the lifecycle controller.
type Source interface {
	Snapshot() internal_type.SessionSnapshot
	Changed() <-chan struct{}
	MaxDuration() time.Duration
	Now() time.Time
}

// View is everything one frame needs.
type View struct {
	Title       string
	Snapshot    internal_type.SessionSnapshot
	Now         time.Time
	MaxDuration time.Duration
	// Remaining is the number of recordings left, or -1 when unknown.
	Remaining int
}

func StatusText(status internal_type.SessionStatus) string {
	switch status {
	case internal_type.StatusRecording:
		return "Recording..."
	case internal_type.StatusUploading:
		return "Uploading..."
	case internal_type.StatusSuccess:
		return "Message Saved!"
	case internal_type.StatusError:
		return "Error"
	}
	return "Ready"
}

// Message picks the single line shown under the machine: the error wins
// over the info message.
func Message(s internal_type.SessionSnapshot) string {
	if s.ErrorMessage != "" {
		return s.ErrorMessage
	}
	return s.InfoMessage
}

// Render draws one frame of the tape machine.
func Render(v View) string {
	s := v.Snapshot
	elapsed := 0
	if s.StartedAt != nil {
		elapsed = RecordingDuration(*s.StartedAt, v.Now)
	}

	reel := "o"
	if s.IsRecording() {
		reel = reelFrames[elapsed%len(reelFrames)]
	}
	record := "[ ● REC ]"
	if s.IsRecording() {
		record = "[*● REC*]"
	}

	lines := []string{
		v.Title,
		"",
		"   .------.                  .------.",
		fmt.Sprintf("  (   %s    )================(   %s    )", reel, reel),
		"   '------'                  '------'",
		"",
		fmt.Sprintf("  [ %s / %s ]  %s",
			FormatDuration(elapsed),
			FormatDuration(int(v.MaxDuration/time.Second)),
			StatusText(s.Status)),
		fmt.Sprintf("  %s  [ ■ STOP ]", record),
	}
	if v.Remaining >= 0 {
		lines = append(lines, fmt.Sprintf("  %d recording(s) left", v.Remaining))
	}
	if msg := Message(s); msg != "" {
		lines = append(lines, "", "  "+msg)
	}
	if s.HitMaxDuration {
		lines = append(lines, "  "+MessageMaxDuration)
	}

	var b strings.Builder
	border := "+" + strings.Repeat("-", panelWidth) + "+"
	b.WriteString(border + "\n")
	for _, line := range lines {
		pad := panelWidth - 1 - len([]rune(line))
		if pad < 0 {
			pad = 0
		}
		b.WriteString("| " + line + strings.Repeat(" ", pad) + "|\n")
	}
	b.WriteString(border + "\n")
	b.WriteString("  enter: record / stop    ctrl-c: quit\n")
	return b.String()
}

// Renderer redraws the machine whenever the controller changes, and once a
// second while recording so the counter moves.
type Renderer struct {
	out       io.Writer
	title     string
	source    Source
	remaining func(ctx context.Context) int
	logger    commons.Logger
	clear     bool
}

func NewRenderer(out io.Writer, title string, source Source, remaining func(ctx context.Context) int, logger commons.Logger) *Renderer {
	return &Renderer{
		out:       out,
		title:     title,
		source:    source,
		remaining: remaining,
		logger:    logger,
		clear:     true,
	}
}

func (r *Renderer) frame(ctx context.Context) string {
	remaining := -1
	if r.remaining != nil {
		remaining = r.remaining(ctx)
	}
	return Render(View{
		Title:       r.title,
		Snapshot:    r.source.Snapshot(),
		Now:         r.source.Now(),
		MaxDuration: r.source.MaxDuration(),
		Remaining:   remaining,
	})
}

// Draw writes a single frame.
func (r *Renderer) Draw(ctx context.Context) {
	prefix := ""
	if r.clear {
		prefix = clearScreen
	}
	if _, err := io.WriteString(r.out, prefix+r.frame(ctx)); err != nil {
		r.logger.Debugf("display write failed: %v", err)
	}
}

// Run draws until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	r.Draw(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.source.Changed():
			r.Draw(ctx)
		case <-ticker.C:
			if r.source.Snapshot().IsRecording() {
				r.Draw(ctx)
			}
		}
	}
}
