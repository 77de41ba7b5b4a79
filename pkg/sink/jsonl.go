package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/umputun/newscrawl/pkg/domain"
)

// DefaultPathTemplate is the jsonl file layout, one file per source
const DefaultPathTemplate = "./data/{source}_items.jsonl"

// JSONL appends one JSON line per item to a file per source.
// Each line is written with a single write call under the file's lock.
type JSONL struct {
	template string

	mu    sync.Mutex // guards files map
	files map[string]*lockedFile
}

type lockedFile struct {
	mu sync.Mutex
	f  *os.File
}

// NewJSONL makes a jsonl sink, settings: path_template (or path)
func NewJSONL(settings Settings) (Sink, error) {
	tmpl := settings.String("path_template", settings.String("path", DefaultPathTemplate))
	// spider-style placeholders are accepted as aliases of {source}
	tmpl = strings.NewReplacer("{spider.name}", "{source}", "{spider}", "{source}", "{name}", "{source}").Replace(tmpl)
	return &JSONL{template: tmpl, files: map[string]*lockedFile{}}, nil
}

// Open checks the template
func (j *JSONL) Open(context.Context) error {
	if strings.TrimSpace(j.template) == "" {
		return errors.New("empty path template")
	}
	return nil
}

// Path returns the output file of a source
func (j *JSONL) Path(source string) string {
	return strings.ReplaceAll(j.template, "{source}", safeName(source))
}

// Send appends the item as one line
func (j *JSONL) Send(_ context.Context, item *domain.NewsItem) error {
	line, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	line = append(line, '\n')

	lf, err := j.file(j.Path(item.Source))
	if err != nil {
		return err
	}
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if _, err := lf.f.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", lf.f.Name(), err)
	}
	return nil
}

func (j *JSONL) file(path string) (*lockedFile, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if lf, ok := j.files[path]; ok {
		return lf, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("make dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	lf := &lockedFile{f: f}
	j.files[path] = lf
	return lf, nil
}

// Flush syncs all open files
func (j *JSONL) Flush(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var errs []error
	for _, lf := range j.files {
		lf.mu.Lock()
		if err := lf.f.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync %s: %w", lf.f.Name(), err))
		}
		lf.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Close closes all open files
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var errs []error
	for path, lf := range j.files {
		lf.mu.Lock()
		if err := lf.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		lf.mu.Unlock()
		delete(j.files, path)
	}
	return errors.Join(errs...)
}

// safeName makes a source usable as a file name part
func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == 0 {
			return '_'
		}
		return r
	}, s)
}
