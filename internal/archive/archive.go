package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrInvalidArchive = errors.New("invalid archive")
	ErrDuplicateEntry = errors.New("duplicate archive entry")
	ErrEntryNotFound  = errors.New("archive entry not found")
)

// Source is an ordered, read-only set of named documents.
type Source interface {
	Names() []string
	Read(name string) ([]byte, error)
}

type ZipSource struct {
	files map[string]*zip.File
	names []string
}

func OpenZip(data []byte) (*ZipSource, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	src := &ZipSource{files: make(map[string]*zip.File, len(r.File))}
	for _, f := range r.File {
		if _, seen := src.files[f.Name]; seen {
			continue
		}
		src.files[f.Name] = f
		src.names = append(src.names, f.Name)
	}
	return src, nil
}

func (z *ZipSource) Names() []string {
	return append([]string(nil), z.names...)
}

func (z *ZipSource) Read(name string) ([]byte, error) {
	f, ok := z.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type Document struct {
	Name    string
	Content []byte
}

// MemorySource serves documents that are already in memory, in insertion order.
type MemorySource struct {
	docs  map[string][]byte
	names []string
}

func NewMemorySource(docs ...Document) *MemorySource {
	m := &MemorySource{docs: map[string][]byte{}}
	for _, d := range docs {
		m.Put(d.Name, d.Content)
	}
	return m
}

// Put adds a document; a name already present is suffixed with " (n)".
func (m *MemorySource) Put(name string, content []byte) string {
	final := name
	for i := 2; ; i++ {
		if _, exists := m.docs[final]; !exists {
			break
		}
		ext := path.Ext(name)
		final = fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), i, ext)
	}
	m.docs[final] = content
	m.names = append(m.names, final)
	return final
}

func (m *MemorySource) Names() []string {
	return append([]string(nil), m.names...)
}

func (m *MemorySource) Read(name string) ([]byte, error) {
	content, ok := m.docs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	return content, nil
}

// DocumentNames returns the PDF entries of src in archive order.
func DocumentNames(src Source) []string {
	out := []string{}
	for _, name := range src.Names() {
		if IsDocumentName(name) {
			out = append(out, name)
		}
	}
	return out
}

func IsDocumentName(name string) bool {
	if strings.HasSuffix(name, "/") {
		return false
	}
	if strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(path.Base(name), "._") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// Writer accumulates the output container of one batch.
type Writer struct {
	buf   *bytes.Buffer
	zw    *zip.Writer
	names map[string]struct{}
	order []string
	done  bool
}

func NewWriter() *Writer {
	buf := &bytes.Buffer{}
	return &Writer{buf: buf, zw: zip.NewWriter(buf), names: map[string]struct{}{}}
}

func (w *Writer) Has(name string) bool {
	_, ok := w.names[name]
	return ok
}

func (w *Writer) Add(name string, content []byte) error {
	if w.done {
		return errors.New("archive writer already closed")
	}
	if w.Has(name) {
		return fmt.Errorf("%w: %s", ErrDuplicateEntry, name)
	}
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	if _, err := fw.Write(content); err != nil {
		return err
	}
	w.names[name] = struct{}{}
	w.order = append(w.order, name)
	return nil
}

func (w *Writer) Names() []string {
	return append([]string(nil), w.order...)
}

func (w *Writer) Len() int {
	return len(w.order)
}

// Bytes finalizes the archive. No entry can be added afterwards.
func (w *Writer) Bytes() ([]byte, error) {
	if !w.done {
		if err := w.zw.Close(); err != nil {
			return nil, err
		}
		w.done = true
	}
	return w.buf.Bytes(), nil
}

func (w *Writer) Base64() (string, error) {
	blob, err := w.Bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}
