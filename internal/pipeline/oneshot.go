package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"rpanamer/internal/ocr"
)

// ExtractFromInput runs the extraction on a single input outside of a batch.
// inputType is "text" (input is the text itself), "textfile" or "pdf".
func ExtractFromInput(ctx context.Context, inputType, input string, recognizer ocr.Recognizer) (Extraction, error) {
	switch inputType {
	case "text":
		return Extract(input), nil
	case "textfile":
		blob, err := os.ReadFile(input)
		if err != nil {
			return Extraction{}, err
		}
		return Extract(string(blob)), nil
	case "pdf":
		if recognizer == nil {
			return Extraction{}, errors.New("pdf input requires an OCR recognizer")
		}
		blob, err := os.ReadFile(input)
		if err != nil {
			return Extraction{}, err
		}
		res := recognizer.Recognize(ctx, filepath.Base(input), blob)
		return Extract(res.Text), nil
	default:
		return Extraction{}, fmt.Errorf("unsupported input type: %s", inputType)
	}
}
