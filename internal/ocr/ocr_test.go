package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageOneHOCR = `<?xml version="1.0" encoding="UTF-8"?>
<html><body><div class="ocr_page">
 <p class="ocr_par">
  <span class="ocr_line" title="bbox 0 0 10 10">
   <span class="ocrx_word" title="bbox 0 0 1 1; x_wconf 90">RPA:</span>
   <span class="ocrx_word" title="bbox 0 0 1 1; x_wconf 80">1234</span>
  </span>
  <span class="ocr_header" title="bbox 0 0 10 10">
   <span class="ocrx_word" title="bbox 0 0 1 1; x_wconf 70">Nome:</span>
   <span class="ocrx_word" title="bbox 0 0 1 1; x_wconf 60">MARIA</span>
  </span>
  <span class="ocr_line" title="bbox 0 0 10 10"><span class="ocrx_word" title="x_wconf 50"> </span></span>
 </p>
</div></body></html>`

const pageTwoHOCR = `<html><body><span class="ocr_line"><span class="ocrx_word" title="x_wconf 100">CPF</span></span></body></html>`

type fakeRunner struct {
	mu       sync.Mutex
	calls    map[string]int
	pages    int
	hocr     map[string]string
	failWith error
	block    bool
}

func newFakeRunner(pages int) *fakeRunner {
	return &fakeRunner{calls: map[string]int{}, pages: pages, hocr: map[string]string{}}
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	if f.failWith != nil {
		return nil, []byte("boom"), f.failWith
	}

	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		return []byte(f.hocr[filepath.Base(args[0])]), nil, nil
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func (f *fakeRunner) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func newTestEngine(cfg Config, runner Runner) *Engine {
	e := NewEngine(cfg, nil)
	e.runner = runner
	return e
}

func TestParseHOCR(t *testing.T) {
	page, err := ParseHOCR([]byte(pageOneHOCR))
	require.NoError(t, err)

	assert.Equal(t, []string{"RPA: 1234", "Nome: MARIA"}, page.Lines)
	assert.Equal(t, 4, page.Words)
	assert.InDelta(t, 0.75, page.Confidence, 0.0001)
	assert.Equal(t, "RPA: 1234\nNome: MARIA", page.Text())
}

func TestRecognizeWithTesseract(t *testing.T) {
	runner := newFakeRunner(2)
	runner.hocr["page-1.png"] = pageOneHOCR
	runner.hocr["page-2.png"] = pageTwoHOCR
	engine := newTestEngine(Config{Timeout: time.Second}, runner)

	res := engine.Recognize(context.Background(), "a.pdf", []byte("%PDF-1.4 scanned"))
	require.NoError(t, res.Err)

	assert.Equal(t, "RPA: 1234\nNome: MARIA\nCPF", res.Text)
	assert.Equal(t, MethodTesseract, res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.InDelta(t, 0.875, res.Confidence, 0.0001)
	assert.Equal(t, "", res.Reason())
}

func TestRecognizeFallsBackWhenTextLayerUnreadable(t *testing.T) {
	runner := newFakeRunner(1)
	runner.hocr["page-1.png"] = pageTwoHOCR
	engine := newTestEngine(Config{Timeout: time.Second, TextLayer: true, TextLayerMinChars: 1}, runner)

	res := engine.Recognize(context.Background(), "a.pdf", []byte("not a pdf"))
	require.False(t, res.Failed())
	assert.Equal(t, MethodTesseract, res.Method)
	assert.Equal(t, "CPF", res.Text)
}

func TestRecognizeTimeoutDegradesToNoText(t *testing.T) {
	runner := newFakeRunner(1)
	runner.block = true
	engine := newTestEngine(Config{Timeout: 20 * time.Millisecond}, runner)

	res := engine.Recognize(context.Background(), "slow.pdf", []byte("%PDF"))
	assert.True(t, res.Failed())
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.Equal(t, "timeout", res.Reason())
	assert.Empty(t, res.Text)
}

func TestRecognizeNoPages(t *testing.T) {
	engine := newTestEngine(Config{Timeout: time.Second}, newFakeRunner(0))

	res := engine.Recognize(context.Background(), "empty.pdf", []byte("%PDF"))
	assert.ErrorIs(t, res.Err, ErrNoPages)
	assert.Equal(t, "error", res.Reason())
}

func TestBreakerShortCircuitsAfterConsecutiveFailures(t *testing.T) {
	runner := newFakeRunner(1)
	runner.failWith = errors.New("exit status 1")
	engine := newTestEngine(Config{Timeout: time.Second, BreakerFailures: 2, BreakerCooldown: time.Minute}, runner)

	for i := 0; i < 2; i++ {
		res := engine.Recognize(context.Background(), "bad.pdf", []byte("%PDF"))
		assert.Equal(t, "error", res.Reason())
	}
	res := engine.Recognize(context.Background(), "bad.pdf", []byte("%PDF"))
	assert.Equal(t, "breaker-open", res.Reason())
	assert.Equal(t, 2, runner.count("pdftoppm"))
}
