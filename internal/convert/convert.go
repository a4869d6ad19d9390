package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-ingest/internal/npz"
)

// individualModeModalities selects per-file conversion instead of
// stacking a 3-D volume (spec.md §4.3 mode selection).
var individualModeModalities = map[string]bool{"DR": true, "DX": true, "MG": true}

// ConversionRecord is one row of the series' conversion_map cache
// (spec.md §3 Conversion Record): an output file, the source instance it
// came from, and the geometry needed by downstream metadata/QC.
type ConversionRecord struct {
	OutputFilename string
	SourceInstance string
	Photometric    string
	Rows, Columns  int
	InstanceNumber int
}

// Result summarizes a completed (or failed) series conversion.
type Result struct {
	Success         bool
	NIfTIFiles      []string
	NPZFiles        []string
	ConversionMap   map[string]ConversionRecord
	OriginalsRemoved bool
}

// Options configures ConvertSeries.
type Options struct {
	SeriesDir      string
	SeriesName     string // sanitized, used as dcm2niix -f and NIfTI basename
	Modality       string
	Dcm2niixPath   string
	ProduceNPZ     bool
}

// ConvertSeries converts every .dcm file under opts.SeriesDir, preferring
// the dcm2niix tool and falling back to the pure-library path on failure,
// per spec.md §4.3. Originals are deleted only if at least one output
// succeeded (the convert-or-keep invariant, spec.md §8 property 8).
func ConvertSeries(ctx context.Context, opts Options) (*Result, error) {
	files, err := listDCMFiles(opts.SeriesDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &Result{Success: false, ConversionMap: map[string]ConversionRecord{}}, nil
	}

	result := &Result{ConversionMap: map[string]ConversionRecord{}}

	if individualModeModalities[strings.ToUpper(opts.Modality)] {
		convertIndividual(ctx, opts, files, result)
	} else {
		convertSeries(ctx, opts, files, result)
	}

	result.Success = len(result.NIfTIFiles) > 0 || len(result.NPZFiles) > 0
	if result.Success {
		for _, f := range files {
			if err := os.Remove(f); err != nil {
				log.Warn().Err(err).Str("file", f).Msg("failed removing original DICOM file after conversion")
			}
		}
		result.OriginalsRemoved = true
	}
	return result, nil
}

// sourceInstanceGeometry reads the photometric interpretation and pixel
// dimensions straight from the source instance, for the Conversion
// Record fields spec.md §3 requires alongside the output filename.
func sourceInstanceGeometry(path string) (photometric string, rows, cols int) {
	inst, err := readInstance(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("failed reading source instance geometry for conversion record")
		return "", 0, 0
	}
	return inst.photometric, inst.rows, inst.cols
}

func listDCMFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("convert: read series dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dcm") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func convertSeries(ctx context.Context, opts Options, files []string, result *Result) {
	toolErr := RunDcm2niix(ctx, Dcm2niixOptions{
		BinaryPath: opts.Dcm2niixPath,
		InputDir:   opts.SeriesDir,
		OutputDir:  opts.SeriesDir,
		OutputName: opts.SeriesName,
		Individual: false,
	})

	var niiPath string
	if toolErr == nil {
		matches, _ := filepath.Glob(filepath.Join(opts.SeriesDir, opts.SeriesName+"*.nii.gz"))
		if len(matches) > 0 {
			niiPath = matches[0]
		}
	}

	if niiPath == "" {
		log.Warn().Err(toolErr).Str("series_dir", opts.SeriesDir).Msg("dcm2niix unavailable or failed, using pure-library fallback")
		niiPath = filepath.Join(opts.SeriesDir, opts.SeriesName+".nii.gz")
		if err := ConvertSeriesFallback(files, niiPath); err != nil {
			log.Error().Err(err).Str("series_dir", opts.SeriesDir).Msg("pure-library conversion failed")
			return
		}
	}

	photometric, rows, cols := sourceInstanceGeometry(files[0])

	result.NIfTIFiles = append(result.NIfTIFiles, niiPath)
	result.ConversionMap[filepath.Base(niiPath)] = ConversionRecord{
		OutputFilename: filepath.Base(niiPath),
		SourceInstance: filepath.Base(files[0]),
		Photometric:    photometric,
		Rows:           rows,
		Columns:        cols,
	}

	if opts.ProduceNPZ {
		npzPath := strings.TrimSuffix(niiPath, ".nii.gz") + ".npz"
		if err := npz.Normalize(niiPath, npzPath); err != nil {
			log.Error().Err(err).Str("nifti", niiPath).Msg("NPZ normalization failed")
			return
		}
		result.NPZFiles = append(result.NPZFiles, npzPath)
		cloned := result.ConversionMap[filepath.Base(niiPath)]
		cloned.OutputFilename = filepath.Base(npzPath)
		result.ConversionMap[filepath.Base(npzPath)] = cloned

		if err := os.Remove(niiPath); err != nil {
			log.Warn().Err(err).Str("nifti", niiPath).Msg("failed removing intermediate NIfTI")
		} else {
			for i, f := range result.NIfTIFiles {
				if f == niiPath {
					result.NIfTIFiles = append(result.NIfTIFiles[:i], result.NIfTIFiles[i+1:]...)
					break
				}
			}
		}
	}
}

func convertIndividual(ctx context.Context, opts Options, files []string, result *Result) {
	ordered := sortInstancesByInstanceNumber(files)

	for i, srcFile := range ordered {
		outputName := fmt.Sprintf("%s_%04d", opts.SeriesName, i+1)

		tempDir, err := PrepareIndividualInputDir(srcFile)
		if err != nil {
			log.Error().Err(err).Str("file", srcFile).Msg("failed preparing individual-mode temp dir")
			continue
		}

		toolErr := RunDcm2niix(ctx, Dcm2niixOptions{
			BinaryPath: opts.Dcm2niixPath,
			InputDir:   tempDir,
			OutputDir:  opts.SeriesDir,
			OutputName: outputName,
			Individual: true,
		})
		os.RemoveAll(tempDir)

		var niiPath string
		if toolErr == nil {
			matches, _ := filepath.Glob(filepath.Join(opts.SeriesDir, outputName+"*.nii.gz"))
			if len(matches) > 0 {
				niiPath = matches[0]
			}
		}
		if niiPath == "" {
			niiPath = filepath.Join(opts.SeriesDir, outputName+".nii.gz")
			if err := ConvertSeriesFallback([]string{srcFile}, niiPath); err != nil {
				log.Error().Err(err).Str("file", srcFile).Msg("individual-mode conversion failed, skipping file")
				continue
			}
		}

		photometric, rows, cols := sourceInstanceGeometry(srcFile)

		result.NIfTIFiles = append(result.NIfTIFiles, niiPath)
		result.ConversionMap[filepath.Base(niiPath)] = ConversionRecord{
			OutputFilename: filepath.Base(niiPath),
			SourceInstance: filepath.Base(srcFile),
			Photometric:    photometric,
			Rows:           rows,
			Columns:        cols,
			InstanceNumber: i + 1,
		}

		if opts.ProduceNPZ {
			npzPath := strings.TrimSuffix(niiPath, ".nii.gz") + ".npz"
			if err := npz.Normalize(niiPath, npzPath); err == nil {
				result.NPZFiles = append(result.NPZFiles, npzPath)
				cloned := result.ConversionMap[filepath.Base(niiPath)]
				cloned.OutputFilename = filepath.Base(npzPath)
				result.ConversionMap[filepath.Base(npzPath)] = cloned
				os.Remove(niiPath)
			}
		}
	}
}

// Callers should sanitize opts.SeriesName (e.g. via pacs.SanitizeFolderName)
// before invoking ConvertSeries, since it is used verbatim as the dcm2niix
// output basename.
