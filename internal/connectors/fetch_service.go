package connectors

import (
	"context"

	"go.uber.org/zap"

	"rpanamer/internal/logging"
	"rpanamer/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *zap.Logger
}

type FetchResult struct {
	Fetched    int
	Stored     int
	Duplicates int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *zap.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logging.OrNop(logger).Named("fetch"),
	}
}

// FetchAndStore pulls up to max messages from label and records new ones
// as "fetched". Messages already known with the same content are counted
// as duplicates and keep their status.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, fresh, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if !fresh {
			res.Duplicates++
			continue
		}
		res.Stored++
		s.logger.Info("email stored",
			zap.String("provider", row.Provider),
			zap.String("message_id", row.MessageID),
			zap.String("subject", row.Subject),
		)
	}
	return res, nil
}
