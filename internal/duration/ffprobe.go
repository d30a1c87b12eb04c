package duration

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Lacarte/video-player/internal/errors"
)

// FFProbe is an Oracle backed by the ffprobe binary. All calls through one
// FFProbe share a single slot, so at most one ffprobe process runs at a time
// no matter how many resolvers or requests use it.
type FFProbe struct {
	binary  string
	timeout time.Duration
	slot    *semaphore.Weighted
}

// NewFFProbe creates an oracle running binary with a per-call timeout.
func NewFFProbe(binary string, timeout time.Duration) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{
		binary:  binary,
		timeout: timeout,
		slot:    semaphore.NewWeighted(1),
	}
}

// Available reports whether the binary can be found.
func (p *FFProbe) Available() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("ffprobe not available: %w", err)
	}
	return nil
}

// Duration implements Oracle.
func (p *FFProbe) Duration(ctx context.Context, absPath string) (float64, error) {
	if err := p.slot.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer p.slot.Release(1)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// #nosec G204 -- binary comes from configuration, the path is a single argument
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		absPath,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("ffprobe timed out after %v: %w", p.timeout, errors.ErrTimeout)
		}
		return 0, fmt.Errorf("run ffprobe: %w", err)
	}
	return ParseProbeOutput(out)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseProbeOutput extracts format.duration from ffprobe's JSON output.
func ParseProbeOutput(data []byte) (float64, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	if out.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration: %w", errors.ErrNotFound)
	}
	d, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, errors.NewValidationError("duration", fmt.Sprintf("invalid duration %q", out.Format.Duration))
	}
	return d, nil
}
