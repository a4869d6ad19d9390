package pacs

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/dicom-ingest/internal/dimsenet"
)

// DownloadOptions configures a DownloadStudy call.
type DownloadOptions struct {
	PACSIP      string
	PACSPort    int
	CallingAET  string
	CalledAET   string
	CallingPort int

	OutputDir        string
	CustomFolderName string

	HighWatermarkGB float64
	LowWatermarkGB  float64
	WatermarkPoll   time.Duration

	// OnSeriesDownloaded is invoked once per series, after its files have
	// finished arriving, with the series directory and its C-FIND metadata.
	// Matches the original download_study's on_series_downloaded hook,
	// which the processing pipeline orchestrator uses to enqueue work.
	OnSeriesDownloaded func(seriesDir string, series SeriesInfo)

	// OnProgress reports (index, total, description) as each series starts.
	OnProgress func(index, total int, series SeriesInfo)
}

// DownloadResult summarizes a completed study download.
type DownloadResult struct {
	OutputPath   string
	FilesReceived int
}

// DownloadStudy resolves a study's series via C-FIND, starts the embedded
// C-STORE SCP, and issues one C-MOVE per series, writing received
// instances under OutputDir/<folder>/<seriesNum>_<sanitized desc>/. This is
// the full spec.md §4.1 retrieval engine: query, disk-watermark
// backpressure, per-series C-MOVE, and the on-series-downloaded callback
// that hands control to the processing pipeline.
func DownloadStudy(accessionNumber string, opts DownloadOptions) (*DownloadResult, error) {
	if opts.WatermarkPoll == 0 {
		opts.WatermarkPoll = 5 * time.Second
	}

	scuAddr := net.JoinHostPort(opts.PACSIP, strconv.Itoa(opts.PACSPort))
	queryAssoc, err := dimsenet.Connect(scuAddr, dimsenet.Config{
		CallingAET: opts.CallingAET,
		CalledAET:  opts.CalledAET,
	})
	if err != nil {
		return nil, fmt.Errorf("pacs: connect for query: %w", err)
	}

	series, err := QuerySeriesMetadata(queryAssoc, accessionNumber)
	queryAssoc.Close()
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("pacs: no series found for accession %s", accessionNumber)
	}

	folderName := opts.CustomFolderName
	if folderName == "" {
		folderName = fmt.Sprintf("%s_%s", accessionNumber, time.Now().Format("20060102_150405"))
	}
	outputPath := filepath.Join(opts.OutputDir, folderName)
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("pacs: create output directory: %w", err)
	}

	var mu sync.Mutex
	var currentSeriesDir string
	var filesReceived int

	storeServer := dimsenet.NewServer(opts.CallingAET, func(sopClassUID, sopInstanceUID, transferSyntaxUID string, dataset []byte) uint16 {
		mu.Lock()
		dir := currentSeriesDir
		mu.Unlock()

		if dir == "" || sopInstanceUID == "" {
			return dimsenet.StatusCannotProcess
		}
		path := filepath.Join(dir, sopInstanceUID+".dcm")
		if err := writePart10File(path, sopClassUID, sopInstanceUID, transferSyntaxUID, dataset); err != nil {
			log.Error().Err(err).Str("sop_instance_uid", sopInstanceUID).Msg("failed saving received DICOM instance")
			return dimsenet.StatusCannotProcess
		}

		mu.Lock()
		filesReceived++
		n := filesReceived
		mu.Unlock()
		if n%10 == 0 {
			log.Info().Int("files_received", n).Msg("receiving series instances")
		}
		return dimsenet.StatusSuccess
	})

	listenAddr := net.JoinHostPort("0.0.0.0", strconv.Itoa(opts.CallingPort))
	serveErrCh := make(chan error, 1)
	serveCtx, cancelServe := context.WithCancel(context.Background())
	go func() {
		serveErrCh <- storeServer.ListenAndServe(serveCtx, listenAddr)
	}()
	defer func() {
		cancelServe()
		storeServer.Close()
		if err := <-serveErrCh; err != nil {
			log.Debug().Err(err).Msg("store SCP listener stopped")
		}
	}()

	moveAssoc, err := dimsenet.Connect(scuAddr, dimsenet.Config{
		CallingAET: opts.CallingAET,
		CalledAET:  opts.CalledAET,
	})
	if err != nil {
		return nil, fmt.Errorf("pacs: connect for C-MOVE: %w", err)
	}
	defer moveAssoc.Close()

	for i, s := range series {
		seriesDirName := fmt.Sprintf("%s_%s", padSeriesNumber(s.SeriesNumber), SanitizeFolderName(s.SeriesDescription))
		seriesDir := filepath.Join(outputPath, seriesDirName)

		mu.Lock()
		currentSeriesDir = seriesDir
		mu.Unlock()

		log.Info().Int("index", i+1).Int("total", len(series)).
			Str("series_number", s.SeriesNumber).Str("series_description", s.SeriesDescription).
			Msg("downloading series")

		WaitForDiskLow(outputPath, opts.HighWatermarkGB, opts.LowWatermarkGB, opts.WatermarkPoll)

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(series), s)
		}

		moveQuery := dimsenet.NewDataset()
		moveQuery.Set(dimsenet.TagQueryRetrieveLevel, "SERIES")
		moveQuery.Set(dimsenet.TagStudyInstanceUID, s.StudyInstanceUID)
		moveQuery.Set(dimsenet.TagSeriesInstanceUID, s.SeriesInstanceUID)

		responses, err := moveAssoc.SendCMove(moveQuery, opts.CallingAET)
		if err != nil {
			log.Warn().Err(err).Str("series_instance_uid", s.SeriesInstanceUID).Msg("C-MOVE failed")
		} else if len(responses) == 0 {
			log.Warn().Str("series_instance_uid", s.SeriesInstanceUID).Msg("no C-MOVE response received (timeout or network issue)")
		} else {
			final := responses[len(responses)-1]
			if final.Status != dimsenet.StatusSuccess {
				log.Warn().Uint16("status", final.Status).Str("series_instance_uid", s.SeriesInstanceUID).Msg("C-MOVE completed with non-success status")
			}
		}

		time.Sleep(500 * time.Millisecond)

		if opts.OnSeriesDownloaded != nil {
			opts.OnSeriesDownloaded(seriesDir, s)
		}
	}

	mu.Lock()
	total := filesReceived
	mu.Unlock()

	if total == 0 {
		return nil, fmt.Errorf("pacs: no files received for accession %s", accessionNumber)
	}
	return &DownloadResult{OutputPath: outputPath, FilesReceived: total}, nil
}

func padSeriesNumber(n string) string {
	for len(n) < 3 {
		n = "0" + n
	}
	return n
}
