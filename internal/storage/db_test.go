package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpanamer/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveBatchAndExportRows(t *testing.T) {
	db := openTestDB(t)

	records := []internal.FileRecord{
		{
			Position:        0,
			OriginalName:    "a.pdf",
			SynthesizedName: "X_RPA 1234_DIARISTA MARIA DA SILVA_1.500,00_12345678901",
			Status:          internal.StatusSuccess,
			RawText:         "RPA: 1234",
			Fields:          &internal.NormalizedFields{Code: "1234", Name: "MARIA DA SILVA", Value: "1.500,00", ID: "12345678901"},
			OCR:             &internal.OCRSummary{Method: "tesseract", Confidence: 0.9},
		},
		{
			Position:        1,
			OriginalName:    "b.pdf",
			SynthesizedName: "b.pdf (Erro)",
			Status:          internal.StatusError,
		},
	}
	batch := internal.BatchRow{ID: "batch-1", Origin: string(internal.OriginUpload), SourceRef: "in.zip", Prefix: "X", Total: 2, Succeeded: 1, Failed: 1}
	require.NoError(t, db.SaveBatch(batch, records))
	require.NoError(t, db.SetBatchOutput("batch-1", "/tmp/out.zip"))

	got, err := db.GetBatch("batch-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "/tmp/out.zip", got.OutputRef)
	assert.Equal(t, 2, got.Total)

	rows, err := db.GetExportRows("batch-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].ValueAmount)
	assert.InDelta(t, 1500.0, *rows[0].ValueAmount, 0.001)
	assert.Equal(t, "12345678901", *rows[0].IDNumber)
	assert.Equal(t, "tesseract", *rows[0].OCRMethod)
	assert.Nil(t, rows[1].Code)
	assert.Equal(t, "error", rows[1].Status)

	list, err := db.ListBatches(10)
	require.NoError(t, err)
	require.Len(t, list, 1)

	missing, err := db.GetBatch("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSaveBatchRejectsDuplicateNames(t *testing.T) {
	db := openTestDB(t)
	records := []internal.FileRecord{
		{Position: 0, OriginalName: "a.pdf", SynthesizedName: "same", Status: internal.StatusError},
		{Position: 1, OriginalName: "b.pdf", SynthesizedName: "same", Status: internal.StatusError},
	}
	err := db.SaveBatch(internal.BatchRow{ID: "dup", Origin: "upload", Prefix: "00", Total: 2, Failed: 2}, records)
	assert.Error(t, err)

	got, err := db.GetBatch("dup")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEmailLifecycle(t *testing.T) {
	db := openTestDB(t)

	email, err := db.UpsertEmail("imap", "<m1@example.com>", "Recibos", "rh@example.com", "2026-10-01T10:00:00Z", "hash", "/raw/m1.eml", "fetched")
	require.NoError(t, err)
	assert.Equal(t, "fetched", email.Status)

	pending, err := db.ListEmailsByStatus("fetched", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, db.MarkEmailProcessed(email.ID, "batch-9"))
	batchID, err := db.EmailBatchID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "batch-9", batchID)

	again, err := db.MustEmailByProviderMessageID("imap", "<m1@example.com>")
	require.NoError(t, err)
	assert.Equal(t, "processed", again.Status)

	_, err = db.MustEmailByProviderMessageID("imap", "<missing>")
	assert.Error(t, err)
}

func TestMetadataAndRuns(t *testing.T) {
	db := openTestDB(t)

	value, err := db.GetMetadata("listener.lastCycleAt")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, db.SetMetadata("listener.lastCycleAt", "2026-10-15T00:00:00Z"))
	require.NoError(t, db.SetMetadata("listener.lastCycleAt", "2026-10-15T01:00:00Z"))
	value, err = db.GetMetadata("listener.lastCycleAt")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15T01:00:00Z", *value)

	require.NoError(t, db.InsertRun("trace", "", map[string]float64{"totalMs": 1}, map[string]int{"documents": 0}))
}
