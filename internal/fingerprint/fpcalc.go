// Package fingerprint computes acoustic fingerprints by shelling out to the
// Chromaprint fpcalc tool. The fingerprint is a compressed base64 string that
// downstream matching treats as an opaque character sequence.
package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/franz/music-dedup/internal/util"
)

// FpcalcOutput represents the JSON emitted by fpcalc -json
type FpcalcOutput struct {
	Duration    float64 `json:"duration"`
	Fingerprint string  `json:"fingerprint"`
}

// Fpcalc shells out to the fpcalc binary
type Fpcalc struct {
	// Binary overrides the executable name, mainly for tests
	Binary string
}

// NewFpcalc creates a fingerprinter using the fpcalc found on PATH
func NewFpcalc() *Fpcalc {
	return &Fpcalc{Binary: "fpcalc"}
}

// Available checks whether the fpcalc binary can be found
func (f *Fpcalc) Available() bool {
	_, err := exec.LookPath(f.binary())
	return err == nil
}

// Fingerprint runs fpcalc on the file and returns the audio duration in
// seconds alongside the fingerprint string
func (f *Fpcalc) Fingerprint(ctx context.Context, path string) (int, string, error) {
	if _, err := exec.LookPath(f.binary()); err != nil {
		return 0, "", fmt.Errorf("fpcalc not found: %w", util.ErrNotFound)
	}

	cmd := exec.CommandContext(ctx, f.binary(), "-json", path)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return 0, "", fmt.Errorf("fpcalc failed for %s: %s", path, string(exitErr.Stderr))
		}
		return 0, "", fmt.Errorf("fpcalc execution failed: %w", err)
	}

	var parsed FpcalcOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return 0, "", fmt.Errorf("failed to parse fpcalc output: %w", err)
	}
	if parsed.Fingerprint == "" {
		return 0, "", fmt.Errorf("fpcalc produced no fingerprint for %s", path)
	}

	return int(parsed.Duration), parsed.Fingerprint, nil
}

func (f *Fpcalc) binary() string {
	if f.Binary != "" {
		return f.Binary
	}
	return "fpcalc"
}
