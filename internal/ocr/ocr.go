package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"rpanamer/internal/config"
	"rpanamer/internal/logging"
)

const (
	MethodTextLayer = "pdf-text"
	MethodTesseract = "tesseract"
)

var (
	ErrTimeout     = errors.New("ocr timed out")
	ErrBreakerOpen = errors.New("ocr circuit open")
	ErrNoPages     = errors.New("no pages rendered")
)

type Config struct {
	Pdftoppm  string
	Tesseract string
	Lang      string
	DPI       int
	MaxPages  int // 0 = all pages
	Timeout   time.Duration

	TextLayer         bool
	TextLayerMinChars int

	BreakerFailures int // 0 disables the breaker
	BreakerCooldown time.Duration
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Pdftoppm:          cfg.OCRPdftoppm,
		Tesseract:         cfg.OCRTesseract,
		Lang:              cfg.OCRLang,
		DPI:               cfg.OCRDPI,
		MaxPages:          cfg.OCRMaxPages,
		Timeout:           cfg.OCRTimeout,
		TextLayer:         cfg.OCRTextLayer,
		TextLayerMinChars: cfg.OCRTextLayerMinChars,
		BreakerFailures:   cfg.OCRBreakerFailures,
		BreakerCooldown:   cfg.OCRBreakerCooldown,
	}
}

// Result is the outcome of one bounded OCR call. Err set means "no text".
type Result struct {
	Text       string
	Pages      int
	Method     string
	Confidence float64
	Duration   time.Duration
	Err        error
}

func (r Result) Failed() bool { return r.Err != nil }

func (r Result) Reason() string {
	switch {
	case r.Err == nil:
		return ""
	case errors.Is(r.Err, ErrTimeout):
		return "timeout"
	case errors.Is(r.Err, ErrBreakerOpen):
		return "breaker-open"
	case errors.Is(r.Err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// Recognizer turns one document into plain text. Implementations never fail
// the caller; failures are carried in Result.Err.
type Recognizer interface {
	Recognize(ctx context.Context, name string, content []byte) Result
}

type Engine struct {
	cfg     Config
	runner  Runner
	breaker *gobreaker.CircuitBreaker[Result]
	logger  *zap.Logger
}

func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	logger = logging.OrNop(logger).Named("ocr")
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	e := &Engine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	if cfg.BreakerFailures > 0 {
		threshold := uint32(cfg.BreakerFailures)
		e.breaker = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
			Name:        "ocr",
			MaxRequests: 1,
			Timeout:     cfg.BreakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("ocr breaker state change", zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	return e
}

func (e *Engine) Recognize(ctx context.Context, name string, content []byte) Result {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var res Result
	var err error
	if e.breaker != nil {
		res, err = e.breaker.Execute(func() (Result, error) {
			return e.recognize(callCtx, content)
		})
	} else {
		res, err = e.recognize(callCtx, content)
	}
	res.Duration = time.Since(start)

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			err = fmt.Errorf("%w: %v", ErrBreakerOpen, err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			err = fmt.Errorf("%w after %s: %v", ErrTimeout, e.cfg.Timeout, err)
		}
		e.logger.Warn("ocr failed", zap.String("document", name), zap.Duration("duration", res.Duration), zap.Error(err))
		return Result{Method: res.Method, Duration: res.Duration, Err: err}
	}

	e.logger.Debug("ocr done",
		zap.String("document", name),
		zap.String("method", res.Method),
		zap.Int("pages", res.Pages),
		zap.Int("chars", len(res.Text)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (e *Engine) recognize(ctx context.Context, content []byte) (Result, error) {
	if e.cfg.TextLayer {
		text, pages, err := readTextLayer(content)
		if err == nil && countNonSpace(text) >= e.cfg.TextLayerMinChars {
			return Result{Text: strings.TrimSpace(text), Pages: pages, Method: MethodTextLayer, Confidence: 1}, nil
		}
		if err != nil {
			e.logger.Debug("text layer unavailable", zap.Error(err))
		}
	}
	return e.tesseract(ctx, content)
}

func (e *Engine) tesseract(ctx context.Context, content []byte) (Result, error) {
	res := Result{Method: MethodTesseract}

	tmpDir, err := os.MkdirTemp("", "rpa-ocr-*")
	if err != nil {
		return res, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", zap.String("dir", tmpDir), zap.Error(err))
		}
	}()

	input := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(input, content, 0o600); err != nil {
		return res, err
	}

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, input, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return res, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(errb)))
	}

	images, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(images)
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}
	if len(images) == 0 {
		return res, ErrNoPages
	}

	pages := make([]string, 0, len(images))
	var confSum float64
	var confPages int
	var lastErr error
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.Lang, "hocr")
		if err != nil {
			lastErr = fmt.Errorf("tesseract %s: %w: %s", filepath.Base(img), err, strings.TrimSpace(string(errb)))
			continue
		}
		page, err := ParseHOCR(out)
		if err != nil {
			lastErr = err
			continue
		}
		pages = append(pages, page.Text())
		if page.Words > 0 {
			confSum += page.Confidence
			confPages++
		}
	}
	if len(pages) == 0 {
		return res, lastErr
	}

	res.Text = strings.TrimSpace(strings.Join(pages, "\n"))
	res.Pages = len(images)
	if confPages > 0 {
		res.Confidence = confSum / float64(confPages)
	}
	return res, nil
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' && r != '\f' {
			n++
		}
	}
	return n
}
