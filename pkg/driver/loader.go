package driver

import (
	"os"
	"sync"

	"github.com/ajitpratap0/adagent/pkg/clients"
	"github.com/ajitpratap0/adagent/pkg/errors"
)

// Loader resolves driver artifacts from a directory and caches the loaded
// extractors by source name. The cache must be invalidated whenever a new
// artifact is written for a source.
type Loader struct {
	dir    string
	client *clients.HTTPClient

	mu    sync.Mutex
	cache map[string]*Extractor
}

// NewLoader creates a loader reading artifacts from dir. Loaded extractors
// issue requests through client.
func NewLoader(dir string, client *clients.HTTPClient) *Loader {
	return &Loader{
		dir:    dir,
		client: client,
		cache:  make(map[string]*Extractor),
	}
}

// Dir returns the artifact directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Path returns the artifact path for source.
func (l *Loader) Path(source string) string {
	return ArtifactPath(l.dir, source)
}

// Exists reports whether an artifact file exists for source.
func (l *Loader) Exists(source string) bool {
	info, err := os.Stat(l.Path(source))
	return err == nil && !info.IsDir()
}

// Load returns the cached extractor for source, loading it on first use.
func (l *Loader) Load(source string) (*Extractor, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ex, ok := l.cache[source]; ok {
		return ex, nil
	}
	ex, err := l.LoadFile(l.Path(source), source)
	if err != nil {
		return nil, err
	}
	l.cache[source] = ex
	return ex, nil
}

// LoadFile loads the entry point for source from an explicit artifact path,
// bypassing the cache.
func (l *Loader) LoadFile(path, source string) (*Extractor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // artifact paths are derived from validated source names
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrorTypeLoad, "driver artifact %s not found", path)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeLoad, "failed to read driver artifact "+path)
	}

	artifact, err := ParseArtifact(data)
	if err != nil {
		return nil, err
	}

	entry := EntryPoint(source)
	plan, ok := artifact.Resource(entry)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeLoad, "entry point %s not found in %s", entry, path)
	}
	return NewExtractor(plan, l.client), nil
}

// Invalidate drops any cached extractor for source.
func (l *Loader) Invalidate(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, source)
}

// Cached reports whether an extractor for source is cached.
func (l *Loader) Cached(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache[source]
	return ok
}
