package pipeline

import "strings"

type DetectResult struct {
	IsBatch   bool
	Documents int
	Reason    string
}

// DetectReceiptMail decides whether a message carries documents to rename:
// at least one PDF or ZIP attachment.
func DetectReceiptMail(attachmentNames []string) DetectResult {
	docs := 0
	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".pdf") || strings.HasSuffix(ln, ".zip") {
			docs++
		}
	}
	if docs == 0 {
		return DetectResult{Reason: "no_documents"}
	}
	return DetectResult{IsBatch: true, Documents: docs, Reason: "documents_attached"}
}
