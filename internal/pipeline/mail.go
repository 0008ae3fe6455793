package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"rpanamer/internal"
	"rpanamer/internal/archive"
	"rpanamer/internal/util"
)

type MailDocuments struct {
	Subject     string
	Attachments []string
	Source      *archive.MemorySource
}

// DocumentsFromEmailRaw collects the PDFs of a raw message: PDF attachments
// as-is and the PDF entries of ZIP attachments, in attachment order.
// Unreadable ZIP attachments are skipped.
func DocumentsFromEmailRaw(raw []byte) (MailDocuments, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailDocuments{}, err
	}

	out := MailDocuments{Subject: env.GetHeader("Subject"), Source: archive.NewMemorySource()}
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, att := range parts {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			continue
		}
		out.Attachments = append(out.Attachments, filename)
		lower := strings.ToLower(filename)

		switch {
		case strings.HasSuffix(lower, ".pdf"):
			out.Source.Put(filename, att.Content)
		case strings.HasSuffix(lower, ".zip"):
			zipped, err := archive.OpenZip(att.Content)
			if err != nil {
				continue
			}
			for _, name := range archive.DocumentNames(zipped) {
				content, err := zipped.Read(name)
				if err != nil {
					continue
				}
				out.Source.Put(filename+"/"+name, content)
			}
		}
	}
	return out, nil
}

type MailResult struct {
	EmailID   int
	BatchID   string
	Documents int
	OutputRef string
}

func (s *BatchService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (MailResult, error) {
	if s.db == nil {
		return MailResult{}, errors.New("mail processing requires a database")
	}
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return MailResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes up to limit fetched emails of provider (all
// providers when empty). An email that fails is logged and marked "failed"
// so it does not hold back the ones after it.
func (s *BatchService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	if s.db == nil {
		return 0, 0, errors.New("mail processing requires a database")
	}
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedDocs := 0
	for _, email := range pending {
		if err := ctx.Err(); err != nil {
			return processedEmails, processedDocs, err
		}
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			s.logger.Error("email failed", zap.Int("email", email.ID), zap.String("message_id", email.MessageID), zap.Error(err))
			if err := s.db.UpdateEmailStatus(email.ID, "failed"); err != nil {
				s.logger.Error("failed to mark email", zap.Int("email", email.ID), zap.Error(err))
			}
			continue
		}
		processedEmails++
		processedDocs += res.Documents
	}
	return processedEmails, processedDocs, nil
}

// ProcessEmail renames the documents of one stored message and writes the
// output archive under OutputDir/mail. The batch is stored only once the
// archive is on disk.
func (s *BatchService) ProcessEmail(ctx context.Context, email internal.EmailRow) (MailResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return MailResult{}, err
	}

	docs, err := DocumentsFromEmailRaw(raw)
	if err != nil {
		return MailResult{}, fmt.Errorf("parse email %d: %w", email.ID, err)
	}

	detect := DetectReceiptMail(docs.Attachments)
	if !detect.IsBatch || len(docs.Source.Names()) == 0 {
		s.logger.Info("email skipped", zap.Int("email", email.ID), zap.String("reason", detect.Reason), zap.Int("documents", detect.Documents))
		if err := s.db.UpdateEmailStatus(email.ID, "skipped"); err != nil {
			return MailResult{}, err
		}
		return MailResult{EmailID: email.ID}, nil
	}

	batch := s.run(ctx, docs.Source, s.cfg.MailListenerPrefix, Origin{Kind: internal.OriginEmail, Ref: email.MessageID})

	blob, err := batch.Archive()
	if err != nil {
		return MailResult{}, err
	}
	filename := fmt.Sprintf("%d_%s.zip", email.ID, util.SafeFileComponent(email.MessageID))
	outputPath := filepath.Join(s.cfg.OutputDir, "mail", filename)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return MailResult{}, err
	}
	if err := os.WriteFile(outputPath, blob, 0o644); err != nil {
		return MailResult{}, err
	}
	if err := s.persist(batch, outputPath); err != nil {
		return MailResult{}, err
	}
	if err := s.db.MarkEmailProcessed(email.ID, batch.ID); err != nil {
		return MailResult{}, err
	}

	return MailResult{EmailID: email.ID, BatchID: batch.ID, Documents: len(batch.Records), OutputRef: outputPath}, nil
}
