package internal

type ExtractionStatus string

const (
	StatusSuccess ExtractionStatus = "success"
	StatusError   ExtractionStatus = "error"
)

// ExtractedFields holds the raw candidates found in the normalized text.
// A nil field means no rule matched.
type ExtractedFields struct {
	Code  *string
	Name  *string
	Value *string
	ID    *string
}

type NormalizedFields struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Value string `json:"value"`
	ID    string `json:"id"`
}

type OCRSummary struct {
	Method     string  `json:"method,omitempty"`
	Pages      int     `json:"pages,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	DurationMs int64   `json:"durationMs"`
	Failure    string  `json:"failure,omitempty"`
}

type FileRecord struct {
	Position        int               `json:"-"`
	OriginalName    string            `json:"originalName"`
	SynthesizedName string            `json:"synthesizedName"`
	Status          ExtractionStatus  `json:"status"`
	RawText         string            `json:"rawText,omitempty"`
	Fields          *NormalizedFields `json:"fields,omitempty"`
	OCR             *OCRSummary       `json:"ocr,omitempty"`
}

type BatchOrigin string

const (
	OriginUpload BatchOrigin = "upload"
	OriginEmail  BatchOrigin = "email"
)

type BatchRow struct {
	ID        string
	Origin    string
	SourceRef string
	Prefix    string
	Total     int
	Succeeded int
	Failed    int
	OutputRef string
	CreatedAt string
}

type RecordExportRow struct {
	Position        int
	OriginalName    string
	SynthesizedName string
	Status          string
	Code            *string
	Name            *string
	Value           *string
	ValueAmount     *float64
	IDNumber        *string
	OCRMethod       *string
	OCRConfidence   *float64
	OCRFailure      *string
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
