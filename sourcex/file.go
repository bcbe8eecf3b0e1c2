package sourcex

import (
	"context"
	"maps"
	"os"
	"sync"
	"time"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/utils"
)

// FileOptions configures a file-backed source.
type FileOptions struct {
	Name   string     // Source name (default: the file path)
	Logger log.Logger // Logger for reload failures (default: logx.New())
}

// Parser turns file content into flat key/value pairs.
type Parser func(data []byte) (map[string]string, error)

// FileSource holds the parsed content of one file. A missing file reads as
// empty. Reload and Watch pick up later edits.
type FileSource struct {
	*Base
	path  string
	parse Parser

	mu      sync.RWMutex
	values  map[string]string
	modTime time.Time
}

// NewPropertiesFileSource loads a .properties file.
func NewPropertiesFileSource(path string, opts FileOptions) (*FileSource, error) {
	return NewFileSource(path, ParseProperties, opts)
}

// NewYAMLFileSource loads a YAML document flattened to dotted keys.
func NewYAMLFileSource(path string, opts FileOptions) (*FileSource, error) {
	return NewFileSource(path, ParseYAML, opts)
}

// NewFileSource loads path with parse. The initial load must succeed.
func NewFileSource(path string, parse Parser, opts FileOptions) (*FileSource, error) {
	if path == "" {
		return nil, errors.New(errors.CodeInvalidArgument, "file path is required")
	}
	if parse == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "parser is required")
	}
	name := opts.Name
	if name == "" {
		name = path
	}
	cfg, err := NewConfig(name)
	if err != nil {
		return nil, err
	}

	s := &FileSource{path: path, parse: parse, values: map[string]string{}}
	s.Base = NewBase(s, cfg, opts.Logger, StringLookup(s.GetStringValue))

	values, modTime, err := s.read()
	if err != nil {
		return nil, err
	}
	s.values, s.modTime = values, modTime
	return s, nil
}

// Path returns the watched file path.
func (s *FileSource) Path() string {
	return s.path
}

// GetStringValue returns the value parsed for key.
func (s *FileSource) GetStringValue(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Snapshot returns a copy of the parsed values.
func (s *FileSource) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *FileSource) read() (map[string]string, time.Time, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(errors.CodeUnavailable, "sourcex.FileSource", err, "stat %s", s.path)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(errors.CodeUnavailable, "sourcex.FileSource", err, "read %s", s.path)
	}
	values, err := s.parse(data)
	if err != nil {
		return nil, time.Time{}, errors.Wrapf(errors.CodeInvalidArgument, "sourcex.FileSource", err, "parse %s", s.path)
	}
	return values, info.ModTime(), nil
}

// Reload re-reads the file and raises a change event when its content differs.
// On failure the previous content is kept.
func (s *FileSource) Reload() error {
	values, modTime, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.modTime = modTime
	if maps.Equal(s.values, values) {
		s.mu.Unlock()
		return nil
	}
	s.values = values
	s.mu.Unlock()

	s.Logger().Info("file reloaded", log.Str("path", s.path), log.Int("keys", len(values)))
	s.RaiseChange()
	return nil
}

// Watch polls the file's modification time every interval and reloads it
// when the file changes or disappears. It blocks until ctx is done.
func (s *FileSource) Watch(ctx context.Context, interval time.Duration) {
	utils.Poll(ctx, interval, func() {
		var modTime time.Time
		info, err := os.Stat(s.path)
		switch {
		case err == nil:
			modTime = info.ModTime()
		case !os.IsNotExist(err):
			s.Logger().Error(err, "failed to stat file", log.Str("path", s.path))
			return
		}

		s.mu.RLock()
		unchanged := modTime.Equal(s.modTime)
		s.mu.RUnlock()
		if unchanged {
			return
		}
		if err := s.Reload(); err != nil {
			s.Logger().Error(err, "failed to reload file", log.Str("path", s.path))
			s.mu.Lock()
			s.modTime = modTime
			s.mu.Unlock()
		}
	})
}
