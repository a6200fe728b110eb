// Package probe sanity checks fetched artifacts with ffprobe.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// FFprobe constants
const (
	FFprobeCommand      = "ffprobe"
	FFprobeLogLevel     = "error"
	FFprobeShowEntries  = "format=duration"
	FFprobeOutputFormat = "csv=p=0"
	DefaultProbeTimeout = 30 * time.Second
)

// Prober inspects a media file
type Prober interface {
	Check(ctx context.Context, path string) (time.Duration, error)
}

// FFprobe runs the ffprobe binary
type FFprobe struct {
	command string
	timeout time.Duration
}

// NewFFprobe creates a prober using ffprobe from PATH
func NewFFprobe() *FFprobe {
	return &FFprobe{command: FFprobeCommand, timeout: DefaultProbeTimeout}
}

// SetCommand overrides the ffprobe executable
func (p *FFprobe) SetCommand(command string) {
	p.command = command
}

// BuildArgs returns the ffprobe arguments printing the container duration
func (p *FFprobe) BuildArgs(path string) []string {
	return []string{"-v", FFprobeLogLevel, "-show_entries", FFprobeShowEntries, "-of", FFprobeOutputFormat, path}
}

// Check returns the media duration and fails for unreadable or empty media
func (p *FFprobe) Check(ctx context.Context, path string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, p.command, p.BuildArgs(path)...).Output()
	if err != nil {
		return 0, fmt.Errorf("failed to run ffprobe: %w", err)
	}

	d, err := ParseDuration(string(output))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("media %s has zero duration", path)
	}
	return d, nil
}

// ParseDuration converts ffprobe's seconds output into a duration
func ParseDuration(output string) (time.Duration, error) {
	durationStr := strings.TrimSpace(output)
	seconds, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
