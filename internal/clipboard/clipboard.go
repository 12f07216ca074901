package clipboard

import (
	"fmt"
	"sync"

	"github.com/berrythewa/clipdrive/internal/types"
)

// Payload is a read-only view of the system clipboard at one point in
// time. A payload may expose several representations at once.
type Payload interface {
	// Has reports whether the representation for f is available.
	Has(f types.Format) bool

	// Text extracts a textual representation (Text, HTML or RTF).
	Text(f types.Format) (string, error)

	// Files extracts the file path list representation.
	Files() ([]string, error)
}

// MemoryPayload is a Payload assembled in memory. It backs tests and the
// CLI when content is supplied directly instead of read from the system.
type MemoryPayload struct {
	mu    sync.RWMutex
	texts map[types.Format]string
	files []string
	errs  map[types.Format]error
}

// NewMemoryPayload creates an empty payload.
func NewMemoryPayload() *MemoryPayload {
	return &MemoryPayload{
		texts: make(map[types.Format]string),
		errs:  make(map[types.Format]error),
	}
}

// WithText adds a textual representation.
func (p *MemoryPayload) WithText(f types.Format, text string) *MemoryPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[f] = text
	return p
}

// WithFiles adds a file list representation.
func (p *MemoryPayload) WithFiles(paths ...string) *MemoryPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append([]string(nil), paths...)
	p.texts[types.FormatFileList] = ""
	return p
}

// WithError makes f advertised but failing on extraction.
func (p *MemoryPayload) WithError(f types.Format, err error) *MemoryPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs[f] = err
	return p
}

func (p *MemoryPayload) Has(f types.Format) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.errs[f]; ok {
		return true
	}
	_, ok := p.texts[f]
	return ok
}

func (p *MemoryPayload) Text(f types.Format) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err, ok := p.errs[f]; ok {
		return "", err
	}
	text, ok := p.texts[f]
	if !ok || f == types.FormatFileList {
		return "", fmt.Errorf("format %s not available", f.Short())
	}
	return text, nil
}

func (p *MemoryPayload) Files() ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err, ok := p.errs[types.FormatFileList]; ok {
		return nil, err
	}
	if _, ok := p.texts[types.FormatFileList]; !ok {
		return nil, fmt.Errorf("format %s not available", types.FormatFileList.Short())
	}
	return append([]string(nil), p.files...), nil
}
