package experiments

import (
	"context"
	"os"
	"strings"
)

// Source provides an ordered sequence of experiment definitions. Load may
// block on I/O and must honor ctx. Implementations follow the partial-success
// contract of ParseEntries: valid definitions are returned alongside a joined
// error for the entries that failed, so one bad entry never empties the set.
type Source interface {
	Load(ctx context.Context) ([]Experiment, error)
}

// StaticSource serves definitions parsed from a fixed list of compact
// grammar entries, the shape a settings/env-backed configuration hands over.
type StaticSource struct {
	entries []string
	opts    []ParseOption
}

// NewStaticSource builds a source over entries. The slice is copied.
func NewStaticSource(entries []string, opts ...ParseOption) *StaticSource {
	return &StaticSource{
		entries: append([]string(nil), entries...),
		opts:    opts,
	}
}

// Load parses the configured entries.
func (s *StaticSource) Load(ctx context.Context) ([]Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SourceError{Source: "static", Err: err}
	}
	return ParseEntries(s.entries, s.opts...)
}

// FileSource serves definitions from a line-oriented file, one compact
// grammar entry per line. Blank lines and lines starting with '#' are
// ignored.
type FileSource struct {
	path string
	opts []ParseOption
}

// NewFileSource builds a source reading path on every Load.
func NewFileSource(path string, opts ...ParseOption) *FileSource {
	return &FileSource{path: path, opts: opts}
}

// Path returns the file the source reads.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads and parses the file. Read failures are SourceErrors; the
// provider keeps its previous snapshot when one occurs.
func (s *FileSource) Load(ctx context.Context) ([]Experiment, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SourceError{Source: s.path, Err: err}
	}
	payload, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &SourceError{Source: s.path, Err: err}
	}
	lines := strings.Split(string(payload), "\n")
	entries := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			line = ""
		}
		entries[i] = line
	}
	return ParseEntries(entries, s.opts...)
}
