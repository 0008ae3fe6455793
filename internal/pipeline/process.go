package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rpanamer/internal"
	"rpanamer/internal/archive"
	"rpanamer/internal/config"
	"rpanamer/internal/logging"
	"rpanamer/internal/ocr"
	"rpanamer/internal/storage"
)

const failedSuffix = " (Erro)"

type BatchService struct {
	db     *storage.DB
	cfg    config.Config
	ocr    ocr.Recognizer
	logger *zap.Logger
}

// NewBatchService wires the orchestrator. db may be nil, in which case
// batches are not persisted.
func NewBatchService(db *storage.DB, cfg config.Config, recognizer ocr.Recognizer, logger *zap.Logger) *BatchService {
	return &BatchService{db: db, cfg: cfg, ocr: recognizer, logger: logging.OrNop(logger).Named("batch")}
}

type Origin struct {
	Kind internal.BatchOrigin
	Ref  string
}

type BatchResult struct {
	ID      string
	Prefix  string
	Origin  Origin
	Records []internal.FileRecord
	Output  *archive.Writer

	scanned time.Duration
	elapsed time.Duration
}

func (b *BatchResult) Counts() (succeeded, failed int) {
	for _, r := range b.Records {
		if r.Status == internal.StatusSuccess {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

func (b *BatchResult) Archive() ([]byte, error) {
	return b.Output.Bytes()
}

// Response is the transport shape of a finished batch: the output archive
// as base64 plus one entry per input document.
type Response struct {
	Success bool                  `json:"success"`
	Data    string                `json:"data,omitempty"`
	Files   []internal.FileRecord `json:"files"`
	Error   string                `json:"error,omitempty"`
}

func (b *BatchResult) Response() (Response, error) {
	data, err := b.Output.Base64()
	if err != nil {
		return Response{}, err
	}
	return Response{Success: true, Data: data, Files: b.Records}, nil
}

func FailureResponse(err error) Response {
	return Response{Success: false, Files: []internal.FileRecord{}, Error: err.Error()}
}

// ProcessArchive processes every PDF of a zip archive. Only an unreadable
// archive fails the batch.
func (s *BatchService) ProcessArchive(ctx context.Context, data []byte, prefix string, origin Origin) (*BatchResult, error) {
	src, err := archive.OpenZip(data)
	if err != nil {
		return nil, err
	}
	return s.ProcessSource(ctx, src, prefix, origin)
}

type scanResult struct {
	content []byte
	ocr     ocr.Result
	err     error
}

// ProcessSource runs OCR over the documents of src (possibly in parallel),
// then assigns names strictly in source order. A persistence failure is
// logged and does not fail the batch.
func (s *BatchService) ProcessSource(ctx context.Context, src archive.Source, prefix string, origin Origin) (*BatchResult, error) {
	batch := s.run(ctx, src, prefix, origin)
	if err := s.persist(batch, ""); err != nil {
		s.logger.Error("failed to persist batch", zap.String("batch", batch.ID), zap.Error(err))
	}
	return batch, nil
}

func (s *BatchService) run(ctx context.Context, src archive.Source, prefix string, origin Origin) *BatchResult {
	start := time.Now()
	names := archive.DocumentNames(src)
	batch := &BatchResult{
		ID:      uuid.NewString(),
		Prefix:  prefix,
		Origin:  origin,
		Records: make([]internal.FileRecord, 0, len(names)),
		Output:  archive.NewWriter(),
	}
	logger := s.logger.With(zap.String("batch", batch.ID))
	logger.Info("batch started", zap.Int("documents", len(names)), zap.String("origin", string(origin.Kind)), zap.String("ref", origin.Ref))

	scans := s.scan(ctx, src, names)
	batch.scanned = time.Since(start)

	used := NewNameSet()
	for i, name := range names {
		rec := s.assemble(logger, i, name, prefix, scans[i], used, batch.Output)
		batch.Records = append(batch.Records, rec)
	}
	batch.elapsed = time.Since(start)

	succeeded, failed := batch.Counts()
	logger.Info("batch finished", zap.Int("success", succeeded), zap.Int("error", failed), zap.Duration("duration", batch.elapsed))
	return batch
}

// persist stores the batch with its records and run timings. Without a
// database it does nothing.
func (s *BatchService) persist(batch *BatchResult, outputRef string) error {
	if s.db == nil {
		return nil
	}
	succeeded, failed := batch.Counts()
	row := internal.BatchRow{
		ID:        batch.ID,
		Origin:    string(batch.Origin.Kind),
		SourceRef: batch.Origin.Ref,
		Prefix:    batch.Prefix,
		Total:     len(batch.Records),
		Succeeded: succeeded,
		Failed:    failed,
		OutputRef: outputRef,
	}
	if err := s.db.SaveBatch(row, batch.Records); err != nil {
		return err
	}
	timings := map[string]float64{
		"ocrMs":   float64(batch.scanned.Milliseconds()),
		"totalMs": float64(batch.elapsed.Milliseconds()),
	}
	counts := map[string]int{"documents": len(batch.Records), "success": succeeded, "error": failed}
	if err := s.db.InsertRun(uuid.NewString(), batch.ID, timings, counts); err != nil {
		s.logger.Warn("failed to record run", zap.String("batch", batch.ID), zap.Error(err))
	}
	return nil
}

func (s *BatchService) scan(ctx context.Context, src archive.Source, names []string) []scanResult {
	results := make([]scanResult, len(names))
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.OCRConcurrency))
	for i, name := range names {
		g.Go(func() error {
			results[i] = s.scanOne(ctx, src, name)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *BatchService) scanOne(ctx context.Context, src archive.Source, name string) (res scanResult) {
	defer func() {
		if r := recover(); r != nil {
			res = scanResult{err: fmt.Errorf("panic while reading %s: %v", name, r)}
		}
	}()

	content, err := src.Read(name)
	if err != nil {
		return scanResult{err: fmt.Errorf("read %s: %w", name, err)}
	}
	s.logger.Debug("ocr started", zap.String("document", name))
	return scanResult{content: content, ocr: s.ocr.Recognize(ctx, name, content)}
}

// assemble turns one scanned document into its record and commits its
// output entry. Any failure here only affects this document.
func (s *BatchService) assemble(logger *zap.Logger, pos int, name, prefix string, scan scanResult, used NameSet, out *archive.Writer) (rec internal.FileRecord) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("document failed", zap.String("document", name), zap.Any("panic", r))
			rec = failedRecord(pos, name)
		}
	}()

	if scan.err != nil {
		logger.Error("document failed", zap.String("document", name), zap.Error(scan.err))
		return failedRecord(pos, name)
	}

	ext := Extract(scan.ocr.Text)
	final := SynthesizeName(prefix, ext.Fields, used)
	if err := out.Add(final+DocumentExt, scan.content); err != nil {
		logger.Error("document failed", zap.String("document", name), zap.Error(err))
		return failedRecord(pos, name)
	}
	used.Add(final + DocumentExt)

	fields := ext.Fields
	summary := &internal.OCRSummary{
		Method:     scan.ocr.Method,
		Pages:      scan.ocr.Pages,
		Confidence: scan.ocr.Confidence,
		DurationMs: scan.ocr.Duration.Milliseconds(),
	}
	if scan.ocr.Failed() {
		summary.Failure = scan.ocr.Reason()
	}

	logger.Info("document processed",
		zap.String("document", name),
		zap.String("status", string(ext.Status)),
		zap.String("name", final),
		zap.String("ocr_failure", summary.Failure),
	)

	return internal.FileRecord{
		Position:        pos,
		OriginalName:    name,
		SynthesizedName: final,
		Status:          ext.Status,
		RawText:         scan.ocr.Text,
		Fields:          &fields,
		OCR:             summary,
	}
}

func failedRecord(pos int, name string) internal.FileRecord {
	return internal.FileRecord{
		Position:        pos,
		OriginalName:    name,
		SynthesizedName: name + failedSuffix,
		Status:          internal.StatusError,
	}
}
