package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"rpanamer/internal/config"
	"rpanamer/internal/connectors"
	gmailconnector "rpanamer/internal/connectors/gmail"
	imapconnector "rpanamer/internal/connectors/imap"
	"rpanamer/internal/logging"
	"rpanamer/internal/pipeline"
	"rpanamer/internal/storage"
	"rpanamer/internal/util"
)

const lastCycleKey = "listener.lastCycleAt"

type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

type Service struct {
	db      *storage.DB
	cfg     config.Config
	batches *pipeline.BatchService
	connect ConnectorFactory
	logger  *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, batches *pipeline.BatchService, logger *zap.Logger) *Service {
	return &Service{
		db:      db,
		cfg:     cfg,
		batches: batches,
		connect: func(ctx context.Context, provider string) (connectors.MailConnector, error) {
			return NewMailConnector(ctx, cfg, provider)
		},
		logger: logging.OrNop(logger).Named("listener"),
	}
}

// NewMailConnector builds the connector of a provider ("gmail" or "imap").
func NewMailConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Documents int
	Exported  int
}

// Run repeats cycles until ctx is done. A failed cycle is logged and the
// next one runs after the usual interval.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	s.logger.Info("listener started", zap.String("provider", s.provider()), zap.Duration("interval", interval))

	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("listener stopped")
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) provider() string {
	return strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := s.provider()
	conn, err := s.connect(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetch := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.logger)
	fetched, err := fetch.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch: %w", err)
	}
	res := CycleResult{Fetched: fetched.Fetched, Stored: fetched.Stored}

	res.Processed, res.Documents, err = s.batches.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, fmt.Errorf("process: %w", err)
	}

	if s.cfg.MailListenerAutoExport {
		if res.Exported, err = s.exportProcessed(provider); err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
	}

	if err := s.db.SetMetadata(lastCycleKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("failed to record cycle time", zap.Error(err))
	}

	s.logger.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("processed", res.Processed),
		zap.Int("documents", res.Documents),
		zap.Int("exported", res.Exported),
	)
	return res, nil
}

// exportProcessed writes one XLSX report per processed email of provider
// and moves the email to "exported".
func (s *Service) exportProcessed(provider string) (int, error) {
	emails, err := s.db.ListEmailsByStatus("processed", 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, email := range emails {
		if email.Provider != provider {
			continue
		}
		batchID, err := s.db.EmailBatchID(email.ID)
		if err != nil {
			return exported, err
		}
		if batchID == "" {
			continue
		}
		rows, err := s.db.GetExportRows(batchID)
		if err != nil {
			return exported, err
		}
		if len(rows) == 0 {
			continue
		}

		filename := fmt.Sprintf("%d_%s.xlsx", email.ID, util.SafeFileComponent(email.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportRecordsToXLSX(rows, outputPath); err != nil {
			return exported, err
		}
		if err := s.db.UpdateEmailStatus(email.ID, "exported"); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}
