package sourcex

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.eggybyte.com/scf/core/errors"
	"go.eggybyte.com/scf/core/log"
	"go.eggybyte.com/scf/core/validate"
	"go.eggybyte.com/scf/typex"
)

// CascadedOptions describes a cascaded source before validation.
type CascadedOptions struct {
	Name            string   `validate:"notblank"`
	KeySeparator    string   `validate:"notblank"`
	CascadedFactors []string `validate:"notblank"`
	Source          Source   `validate:"required"`
}

// CascadedConfig is the validated form of CascadedOptions. The separator and
// factors are trimmed and blank factors are dropped.
type CascadedConfig struct {
	*Config
	keySeparator string
	factors      []string
	source       Source
	keyParts     []string
}

// NewCascadedConfig validates opts and derives the key parts.
func NewCascadedConfig(opts CascadedOptions) (*CascadedConfig, error) {
	opts.KeySeparator = strings.TrimSpace(opts.KeySeparator)
	factors := make([]string, 0, len(opts.CascadedFactors))
	for _, f := range opts.CascadedFactors {
		if f = strings.TrimSpace(f); f != "" {
			factors = append(factors, f)
		}
	}
	opts.CascadedFactors = factors
	if err := validate.Struct("sourcex.NewCascadedConfig", opts); err != nil {
		return nil, err
	}

	cfg, err := NewConfig(opts.Name)
	if err != nil {
		return nil, err
	}
	return &CascadedConfig{
		Config:       cfg,
		keySeparator: opts.KeySeparator,
		factors:      factors,
		source:       opts.Source,
		keyParts:     keyParts(opts.KeySeparator, factors),
	}, nil
}

// keyParts returns ["", sep+f1, sep+f1+sep+f2, ...] with the longest first.
func keyParts(sep string, factors []string) []string {
	parts := make([]string, 0, len(factors)+1)
	parts = append(parts, "")
	var b strings.Builder
	for _, f := range factors {
		b.WriteString(sep)
		b.WriteString(f)
		parts = append(parts, b.String())
	}
	slices.Reverse(parts)
	return parts
}

// KeySeparator returns the trimmed separator.
func (c *CascadedConfig) KeySeparator() string { return c.keySeparator }

// CascadedFactors returns a copy of the trimmed, non-blank factors.
func (c *CascadedConfig) CascadedFactors() []string { return slices.Clone(c.factors) }

// Source returns the wrapped source.
func (c *CascadedConfig) Source() Source { return c.source }

// KeyParts returns a copy of the key suffixes, most specific first.
func (c *CascadedConfig) KeyParts() []string { return slices.Clone(c.keyParts) }

func (c *CascadedConfig) String() string {
	return fmt.Sprintf("cascaded{name=%s, separator=%q, factors=%v, source=%s}",
		c.Name, c.keySeparator, c.factors, c.source.Config().Name)
}

// CascadedSource rewrites a logical key into candidate keys, most specific
// first, and returns the first candidate the wrapped source has a value for.
// Candidate keys are key+part by plain concatenation, so "db" with parts
// [".prod.eu", ".prod", ""] tries "db.prod.eu", "db.prod" and "db".
// Non-string keys are absent.
type CascadedSource struct {
	*Base
	cfg     *CascadedConfig
	keyFunc func(key, part string) string
}

// NewCascadedSource wraps cfg's source.
func NewCascadedSource(cfg *CascadedConfig, logger log.Logger) (*CascadedSource, error) {
	return newCascaded(cfg, logger, func(key, part string) string { return key + part })
}

// NewKeyCachedCascadedSource is like NewCascadedSource but memoizes candidate
// keys so repeated lookups do not rebuild strings. The cache lives as long as
// the source and is safe for concurrent use.
func NewKeyCachedCascadedSource(cfg *CascadedConfig, logger log.Logger) (*CascadedSource, error) {
	cache := &keyCache{}
	return newCascaded(cfg, logger, cache.get)
}

func newCascaded(cfg *CascadedConfig, logger log.Logger, keyFunc func(key, part string) string) (*CascadedSource, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeInvalidArgument, "cascaded config is required")
	}
	s := &CascadedSource{cfg: cfg, keyFunc: keyFunc}
	s.Base = NewBase(s, cfg.Config, logger, nil)
	if err := cfg.source.AddChangeListener(func(e ChangeEvent) { s.RaiseChangeAt(e.ChangeTime) }); err != nil {
		return nil, err
	}
	return s, nil
}

// CascadedConfig returns the source's cascaded configuration.
func (s *CascadedSource) CascadedConfig() *CascadedConfig {
	return s.cfg
}

// GetPropertyValue queries the wrapped source once per candidate key.
func (s *CascadedSource) GetPropertyValue(req PropertyRequest) (any, bool, error) {
	key, ok := req.PropertyKey().(string)
	if !ok {
		return nil, false, nil
	}
	for _, part := range s.cfg.keyParts {
		v, found, err := s.cfg.source.GetPropertyValue(rekeyed{PropertyRequest: req, key: s.keyFunc(key, part)})
		if err != nil {
			return nil, false, err
		}
		if found && !typex.IsAbsent(v) {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// GetStringValue cascades over the wrapped source's raw values. It is absent
// when the wrapped source is not a StringSource.
func (s *CascadedSource) GetStringValue(key string) (string, bool, error) {
	ss, ok := s.cfg.source.(StringSource)
	if !ok {
		return "", false, nil
	}
	for _, part := range s.cfg.keyParts {
		v, found, err := ss.GetStringValue(s.keyFunc(key, part))
		if err != nil {
			return "", false, err
		}
		if found && !typex.IsAbsent(v) {
			return v, true, nil
		}
	}
	return "", false, nil
}

type rekeyed struct {
	PropertyRequest
	key string
}

func (r rekeyed) PropertyKey() any { return r.key }

type cacheKey struct {
	key  string
	part string
}

// keyCache deduplicates concatenated keys per (key, part).
type keyCache struct {
	m sync.Map
}

func (c *keyCache) get(key, part string) string {
	k := cacheKey{key: key, part: part}
	if v, ok := c.m.Load(k); ok {
		return v.(string)
	}
	v, _ := c.m.LoadOrStore(k, key+part)
	return v.(string)
}
