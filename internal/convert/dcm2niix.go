// Package convert implements the Series Converter (spec.md §4.3): a
// dcm2niix-backed tool adapter with retries under a process-wide lock, and
// a pure-library fallback built on github.com/suyashkumar/dicom when the
// tool is unavailable or fails. Grounded on
// original_source/src/core/convert.py's convert_with_dcm2niix /
// _run_dcm2niix_with_retry.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// dcm2niixLock is the process-wide mutex serializing all external dcm2niix
// invocations (spec.md §4.2, §5 shared-resource policy).
var dcm2niixLock sync.Mutex

const (
	individualModeTimeout = 60 * time.Second
	seriesModeTimeout     = 300 * time.Second
	maxRetries            = 3
	retryBackoff          = 500 * time.Millisecond
	truncatedLogBytes     = 300
)

// Dcm2niixOptions configures a tool invocation.
type Dcm2niixOptions struct {
	BinaryPath string
	InputDir   string
	OutputDir  string
	OutputName string
	Individual bool // selects the 60s timeout instead of 300s
}

// RunDcm2niix invokes dcm2niix with the flags spec.md §4.3 mandates
// (`-m y -f <name> -o <dir> -z y -b n <input>`), retrying the whole
// subprocess up to maxRetries times with retryBackoff between attempts.
// It returns an error only after every attempt has failed; callers then
// fall back to the pure-library path.
func RunDcm2niix(ctx context.Context, opts Dcm2niixOptions) error {
	timeout := seriesModeTimeout
	if opts.Individual {
		timeout = individualModeTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := runOnce(ctx, opts, timeout)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Str("output_name", opts.OutputName).
			Msg("dcm2niix invocation failed")
		if attempt < maxRetries {
			time.Sleep(retryBackoff)
		}
	}
	return fmt.Errorf("convert: dcm2niix failed after %d attempts: %w", maxRetries, lastErr)
}

func runOnce(parent context.Context, opts Dcm2niixOptions, timeout time.Duration) error {
	dcm2niixLock.Lock()
	defer dcm2niixLock.Unlock()

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	binary := opts.BinaryPath
	if binary == "" {
		binary = "dcm2niix"
	}

	cmd := exec.CommandContext(ctx, binary,
		"-m", "y",
		"-f", opts.OutputName,
		"-o", opts.OutputDir,
		"-z", "y",
		"-b", "n",
		opts.InputDir,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	produced, _ := filepath.Glob(filepath.Join(opts.OutputDir, opts.OutputName+"*.nii.gz"))
	if runErr == nil && len(produced) > 0 {
		return nil
	}

	log.Warn().
		Str("stdout", truncate(stdout.String(), truncatedLogBytes)).
		Str("stderr", truncate(stderr.String(), truncatedLogBytes)).
		Msg("dcm2niix produced no output")

	if runErr != nil {
		return runErr
	}
	return fmt.Errorf("convert: dcm2niix exited 0 but produced no .nii.gz output")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// PrepareIndividualInputDir copies a single .dcm file into a fresh
// throwaway temp directory, as individual (DR/DX/MG) mode does so
// dcm2niix only ever sees one source file. The caller must remove the
// returned directory.
func PrepareIndividualInputDir(sourceFile string) (string, error) {
	dir, err := os.MkdirTemp("", "dcm2niix-single-*")
	if err != nil {
		return "", fmt.Errorf("convert: create temp dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(sourceFile))
	if err := copyFile(sourceFile, dest); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("convert: read %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("convert: write %s: %w", dst, err)
	}
	return nil
}
