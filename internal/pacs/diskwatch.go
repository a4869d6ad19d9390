package pacs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// DirSizeGB walks directory and sums file sizes, returning gigabytes. A
// missing directory or a walk error yields 0 rather than failing the
// caller, since this is only used for backpressure heuristics.
func DirSizeGB(directory string) float64 {
	var total int64
	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0
	}
	return float64(total) / (1024 * 1024 * 1024)
}

// WaitForDiskLow blocks, polling every pollInterval, while directory's size
// is at or above highWatermarkGB, and returns once it drops to or below
// lowWatermarkGB. It is the backpressure mechanism that keeps the
// download loop from outrunning conversion and filling the disk
// (spec.md §4.1 step 5, §4.2 watermark coupling).
func WaitForDiskLow(directory string, highWatermarkGB, lowWatermarkGB float64, pollInterval time.Duration) {
	current := DirSizeGB(directory)
	if current < highWatermarkGB {
		return
	}

	for current > lowWatermarkGB {
		log.Warn().
			Float64("current_gb", current).
			Float64("high_watermark_gb", highWatermarkGB).
			Msg("disk high watermark reached, pausing downloads")

		time.Sleep(pollInterval)
		current = DirSizeGB(directory)

		if current <= lowWatermarkGB {
			log.Info().
				Float64("current_gb", current).
				Float64("low_watermark_gb", lowWatermarkGB).
				Msg("disk usage dropped below low watermark, resuming")
			break
		}
	}
}
