// Package pipeline implements the Processing Pipeline Orchestrator
// (spec.md §4.2): a download -> convert -> organize -> metadata study job
// driven by a bounded channel and a worker pool, grounded on the
// goroutine/WaitGroup accept-loop style used throughout
// caio-sobreiro-dicomnet/server/server.go and adapted here from a
// connection-per-goroutine server loop to a series-per-goroutine
// converter pool.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/otcheredev/dicom-ingest/internal/archive"
	"github.com/otcheredev/dicom-ingest/internal/convert"
	"github.com/otcheredev/dicom-ingest/internal/metadata"
	"github.com/otcheredev/dicom-ingest/internal/mrclassifier"
	"github.com/otcheredev/dicom-ingest/internal/nifti"
	"github.com/otcheredev/dicom-ingest/internal/pacs"
	"github.com/otcheredev/dicom-ingest/internal/preview"
	"github.com/otcheredev/dicom-ingest/internal/qc"
)

// seriesJob is one item flowing through the bounded channel between the
// downloader task and the converter pool.
type seriesJob struct {
	seriesDir  string
	seriesName string
	info       pacs.SeriesInfo
}

// ProgressFunc mirrors the out-of-scope job layer's progress callback
// contract (spec.md §4.2): (current_series, total_series, series_name, pct).
type ProgressFunc func(current, total int, seriesName string, pct float64)

// StageFunc mirrors the (message, stage) progress callback.
type StageFunc func(message, stage string)

// Options configures one study job.
type Options struct {
	Accession        string
	OutDir           string
	PACS             pacs.DownloadOptions
	MaxPendingSeries int // default 4
	NumConverters    int // default 2
	Dcm2niixPath     string
	ProduceNPZ       bool
	TagCatalogDir    string
	TagCatalog       *metadata.Catalog
	MRClassifierCfg  *mrclassifier.Config
	BuildArchive     bool

	OnProgress ProgressFunc
	OnStage    StageFunc
}

// Result is returned by Run (spec.md §4.2 contract).
type Result struct {
	Success      bool
	OrganizedDir string
	ExcelFile    string
	ArchiveFile  string
	SeriesInfo   []pacs.SeriesInfo
	Err          error
}

// Run drives a single study job end to end: download, convert pool,
// metadata aggregation, and optional archive build.
func Run(ctx context.Context, opts Options) *Result {
	if opts.MaxPendingSeries <= 0 {
		opts.MaxPendingSeries = 4
	}
	if opts.NumConverters <= 0 {
		opts.NumConverters = 2
	}

	organizedDir := filepath.Join(opts.OutDir, "organized")
	if err := os.MkdirAll(organizedDir, 0o755); err != nil {
		return &Result{Err: fmt.Errorf("pipeline: create organized dir: %w", err)}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan seriesJob, opts.MaxPendingSeries)
	var seriesInfos []pacs.SeriesInfo
	var infoMu sync.Mutex
	var converted int64
	var totalSeries int64

	emitStage := func(msg, stage string) {
		if opts.OnStage != nil {
			opts.OnStage(msg, stage)
		}
	}

	emitStage("starting retrieval", "download")

	group, groupCtx := errgroup.WithContext(jobCtx)

	pacsOpts := opts.PACS
	pacsOpts.OutputDir = opts.OutDir
	pacsOpts.OnSeriesDownloaded = func(seriesDir string, info pacs.SeriesInfo) {
		atomic.AddInt64(&totalSeries, 1)
		select {
		case jobs <- seriesJob{seriesDir: seriesDir, seriesName: filepath.Base(seriesDir), info: info}:
		case <-groupCtx.Done():
		}
	}
	pacsOpts.OnProgress = func(index, total int, series pacs.SeriesInfo) {
		if opts.OnProgress != nil {
			opts.OnProgress(index, total, series.SeriesDescription, float64(index)/float64(maxI64(int64(total), 1))*100)
		}
	}

	group.Go(func() error {
		defer close(jobs)
		_, err := pacs.DownloadStudy(opts.Accession, pacsOpts)
		return err
	})

	for i := 0; i < opts.NumConverters; i++ {
		workerID := i
		group.Go(func() error {
			runConverter(groupCtx, workerID, jobs, organizedDir, opts, &infoMu, &seriesInfos, &converted, &totalSeries)
			return nil
		})
	}

	downloadErr := group.Wait()

	if downloadErr != nil {
		return &Result{Success: false, Err: downloadErr, SeriesInfo: seriesInfos}
	}

	emitStage("aggregating metadata", "metadata")
	result := &Result{Success: true, OrganizedDir: organizedDir, SeriesInfo: seriesInfos}

	excelFile, err := runMetadataStage(jobCtx, organizedDir, opts, seriesInfos)
	if err != nil {
		log.Error().Err(err).Str("accession", opts.Accession).Msg("metadata stage failed")
	} else {
		result.ExcelFile = excelFile
	}

	if opts.BuildArchive {
		emitStage("building archive", "archive")
		archivePath := filepath.Join(opts.OutDir, opts.Accession+".zip")
		var extras []string
		if result.ExcelFile != "" {
			extras = append(extras, result.ExcelFile)
		}
		if err := archive.Build(archive.BuildOptions{OrganizedDir: organizedDir, ExtraFiles: extras, OutputPath: archivePath}); err != nil {
			log.Error().Err(err).Str("accession", opts.Accession).Msg("archive build failed")
		} else {
			result.ArchiveFile = archivePath
		}
	}

	return result
}

func runConverter(ctx context.Context, workerID int, jobs <-chan seriesJob, organizedDir string, opts Options,
	infoMu *sync.Mutex, seriesInfos *[]pacs.SeriesInfo, converted, total *int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			processOneSeries(ctx, job, organizedDir, opts)

			n := atomic.AddInt64(converted, 1)
			if opts.OnProgress != nil {
				opts.OnProgress(int(n), int(atomic.LoadInt64(total)), job.seriesName, float64(n)/float64(maxI64(atomic.LoadInt64(total), 1))*100)
			}

			infoMu.Lock()
			*seriesInfos = append(*seriesInfos, job.info)
			infoMu.Unlock()
		}
	}
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// processOneSeries performs the per-series work item 2 of spec.md §4.2's
// algorithm: convert, preview, QC, then move under organizedDir.
func processOneSeries(ctx context.Context, job seriesJob, organizedDir string, opts Options) {
	sanitized := pacs.SanitizeFolderName(job.seriesName)

	catalog := opts.TagCatalog
	if catalog == nil {
		catalog = metadata.EmptyCatalog()
	}
	cache, err := metadata.ExtractSeriesCache(job.seriesDir, catalog)
	if err != nil {
		log.Warn().Err(err).Str("series", job.seriesName).Msg("failed extracting series tag metadata, continuing with empty cache")
		cache = &metadata.SeriesCache{ConversionMap: map[string]convert.ConversionRecord{}}
	}
	cache.StudyInstanceUID = job.info.StudyInstanceUID
	cache.SeriesInstanceUID = job.info.SeriesInstanceUID
	if cache.Modality == "" {
		cache.Modality = job.info.Modality
	}

	convResult, err := convert.ConvertSeries(ctx, convert.Options{
		SeriesDir:    job.seriesDir,
		SeriesName:   sanitized,
		Modality:     job.info.Modality,
		Dcm2niixPath: opts.Dcm2niixPath,
		ProduceNPZ:   opts.ProduceNPZ,
	})
	if err != nil {
		log.Error().Err(err).Str("series", job.seriesName).Msg("series conversion failed")
		return
	}
	cache.ConversionMap = convResult.ConversionMap

	generatePreview(job, convResult, cache)
	qcReport := scoreQuality(job, convResult)
	cache.QCLowQuality = qcReport.LowQuality
	cache.QCLowQualityRatio = qcReport.LowQualityRatio
	cache.QCMode = string(qcReport.QCMode)

	dest := filepath.Join(organizedDir, sanitized)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		log.Error().Err(err).Str("series", job.seriesName).Msg("failed creating organized series dir")
		return
	}
	if err := os.Rename(job.seriesDir, dest); err != nil {
		log.Error().Err(err).Str("series", job.seriesName).Msg("failed moving series directory into organized tree")
		return
	}

	cachePath := filepath.Join(dest, "dicom_metadata_cache.json")
	if err := metadata.WriteCache(cachePath, cache); err != nil {
		log.Warn().Err(err).Str("series", job.seriesName).Msg("failed writing per-series metadata cache")
	}
}

// loadNIfTIForReview opens the series' first NIfTI output, for the preview
// and QC stages which both need a re-readable slice source (spec.md §4.4:
// "For 3-D volumes, select the middle slice and a small stack around it").
func loadNIfTIForReview(convResult *convert.Result) *nifti.Image {
	if len(convResult.NIfTIFiles) == 0 {
		return nil
	}
	img, err := nifti.ReadGZ(convResult.NIfTIFiles[0])
	if err != nil {
		log.Warn().Err(err).Str("file", convResult.NIfTIFiles[0]).Msg("failed reopening NIfTI for preview/QC")
		return nil
	}
	return img
}

func sliceToFloat64(img *nifti.Image, z int) []float64 {
	nx, ny := img.Shape[0], img.Shape[1]
	out := make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			out[y*nx+x] = float64(img.At(x, y, z))
		}
	}
	return out
}

func affinePixelSpacing(img *nifti.Image) (rowSpacing, colSpacing float64) {
	colVec := [3]float64{img.Affine[0][0], img.Affine[1][0], img.Affine[2][0]}
	rowVec := [3]float64{img.Affine[0][1], img.Affine[1][1], img.Affine[2][1]}
	colSpacing = vecNorm(colVec)
	rowSpacing = vecNorm(rowVec)
	if colSpacing <= 0 {
		colSpacing = 1
	}
	if rowSpacing <= 0 {
		rowSpacing = 1
	}
	return rowSpacing, colSpacing
}

func vecNorm(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// windowParamsFromTags resolves WindowCenter/WindowWidth from the series'
// sample tags when present (spec.md §4.4: "if WindowCenter and
// WindowWidth are present use them"), falling back to percentile
// windowing otherwise.
func windowParamsFromTags(cache *metadata.SeriesCache) preview.WindowParams {
	if cache == nil || cache.SampleTags == nil {
		return preview.WindowParams{HasWindow: false}
	}
	centerStr := firstWindowValue(cache.SampleTags["WindowCenter"])
	widthStr := firstWindowValue(cache.SampleTags["WindowWidth"])
	center, centerErr := strconv.ParseFloat(centerStr, 64)
	width, widthErr := strconv.ParseFloat(widthStr, 64)
	if centerErr != nil || widthErr != nil || width <= 0 {
		return preview.WindowParams{HasWindow: false}
	}
	return preview.WindowParams{Center: center, Width: width, HasWindow: true}
}

// firstWindowValue takes the first backslash-joined value, since
// multi-valued WindowCenter/WindowWidth elements list one pair per VOI LUT.
func firstWindowValue(raw string) string {
	if idx := strings.Index(raw, `\`); idx >= 0 {
		return strings.TrimSpace(raw[:idx])
	}
	return strings.TrimSpace(raw)
}

// generatePreview builds the advisory PNG thumbnail; failures are logged
// and do not fail the series (spec.md §4.4 "Previews are advisory").
func generatePreview(job seriesJob, convResult *convert.Result, cache *metadata.SeriesCache) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("series", job.seriesName).Msg("preview generation panicked")
		}
	}()

	img := loadNIfTIForReview(convResult)
	if img == nil {
		return
	}

	midZ := img.Shape[2] / 2
	pixels32 := make([]float32, img.Shape[0]*img.Shape[1])
	for i, v := range sliceToFloat64(img, midZ) {
		pixels32[i] = float32(v)
	}

	windowed := preview.ApplyWindowing(pixels32, windowParamsFromTags(cache))
	gray := preview.BuildGray(img.Shape[0], img.Shape[1], windowed)

	rowSpacing, colSpacing := affinePixelSpacing(img)
	outputPath := filepath.Join(job.seriesDir, job.seriesName+"_preview.png")
	label := fmt.Sprintf("%s %s", job.info.Modality, job.info.SeriesDescription)
	if err := preview.RenderToCanvas(gray, rowSpacing, colSpacing, outputPath, label); err != nil {
		log.Warn().Err(err).Str("series", job.seriesName).Msg("preview render failed")
	}
}

// scoreQuality reopens the produced NIfTI and applies the Quality-Control
// Scorer's sampled-slice heuristic (spec.md §4.4 qc).
func scoreQuality(job seriesJob, convResult *convert.Result) qc.Report {
	img := loadNIfTIForReview(convResult)
	if img == nil {
		return qc.Report{QCMode: qc.ModeNone}
	}

	nz := img.Shape[2]
	report := qc.ScoreSeries(nz, func(i int) []float64 { return sliceToFloat64(img, i) }, qc.DefaultThresholds())
	if report.LowQuality {
		log.Info().Str("series", job.seriesName).Float64("ratio", report.LowQualityRatio).Msg("series flagged low quality")
	}
	return report
}

// sampleInstanceFallback implements spec.md §4.4's "prefer cache,
// otherwise open one sample instance" recovery path for a series folder
// whose cache file is missing or unreadable. It re-derives a SeriesCache
// directly from whatever .dcm files remain in the folder (present when
// conversion failed and left the originals in place); if none remain
// (the normal case once conversion has deleted them), there is nothing
// left to recover from and the caller drops the folder.
func sampleInstanceFallback(folder string, catalog *metadata.Catalog) (*metadata.SeriesCache, error) {
	if catalog == nil {
		catalog = metadata.EmptyCatalog()
	}
	cache, err := metadata.ExtractSeriesCache(folder, catalog)
	if err != nil {
		return nil, err
	}
	if len(cache.Records) == 0 && len(cache.SampleTags) == 0 {
		return nil, fmt.Errorf("pipeline: no .dcm sample instance remains in %s", folder)
	}
	return cache, nil
}

func runMetadataStage(ctx context.Context, organizedDir string, opts Options, seriesInfos []pacs.SeriesInfo) (string, error) {
	entries, err := os.ReadDir(organizedDir)
	if err != nil {
		return "", fmt.Errorf("pipeline: read organized dir: %w", err)
	}

	var folders []metadata.SeriesFolderInfo
	hasMR := false
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folder := filepath.Join(organizedDir, e.Name())
		cache, err := metadata.ReadCache(filepath.Join(folder, "dicom_metadata_cache.json"))
		if err != nil {
			cache, err = sampleInstanceFallback(folder, opts.TagCatalog)
			if err != nil {
				log.Debug().Err(err).Str("folder", folder).Msg("no metadata cache and no sample instance, skipping in workbook aggregation")
				continue
			}
			log.Info().Str("folder", folder).Msg("metadata cache missing, recovered from a sample instance")
		}
		if cache.Modality == "MR" {
			hasMR = true
		}
		folders = append(folders, metadata.SeriesFolderInfo{
			Folder:       e.Name(),
			Cache:        cache,
			QCLowQuality: cache.QCLowQuality,
			QCRatio:      cache.QCLowQualityRatio,
		})
	}

	excelPath := filepath.Join(opts.OutDir, fmt.Sprintf("dicom_metadata_%s.xlsx", opts.Accession))
	select {
	case <-ctx.Done():
		os.Remove(excelPath)
		return "", ctx.Err()
	default:
	}

	if err := metadata.BuildWorkbook(folders, excelPath); err != nil {
		return "", err
	}

	if hasMR {
		runMRClassifierPass(excelPath, folders, opts)
	}
	return excelPath, nil
}

func runMRClassifierPass(excelPath string, folders []metadata.SeriesFolderInfo, opts Options) {
	cfg := opts.MRClassifierCfg
	if cfg == nil {
		cfg = mrclassifier.DefaultConfig()
	}

	var rows []*mrclassifier.Row
	for _, f := range folders {
		if f.Cache == nil || f.Cache.Modality != "MR" {
			continue
		}
		if len(f.Cache.Records) == 0 {
			rows = append(rows, mrclassifier.RowFromTags(f.Cache.StudyInstanceUID, f.Cache.SeriesInstanceUID, f.Cache.SampleTags))
			continue
		}
		for _, rec := range f.Cache.Records {
			tags := rec.Tags
			if len(tags) == 0 {
				tags = f.Cache.SampleTags
			}
			rows = append(rows, mrclassifier.RowFromTags(f.Cache.StudyInstanceUID, f.Cache.SeriesInstanceUID, tags))
		}
	}
	if len(rows) == 0 {
		return
	}

	mrclassifier.Run(rows, cfg)

	header := []string{"SequenceClass", "DynamicGroup", "DynamicPhase", "IsContrastEnhanced"}
	var out [][]interface{}
	for _, r := range rows {
		out = append(out, []interface{}{r.SequenceClass, r.DynamicGroup, r.DynamicPhase, r.IsContrastEnhanced})
	}
	if err := metadata.AppendMRCleanedSheet(excelPath, header, out); err != nil {
		log.Warn().Err(err).Msg("failed appending MR_Cleaned sheet")
	}
}

// WaitWithTimeout is a small helper used by callers that need to bound how
// long they wait for a study job before treating it as stuck.
func WaitWithTimeout(done <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
