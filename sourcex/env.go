package sourcex

import (
	"os"

	"go.eggybyte.com/scf/core/log"
)

// EnvSource reads process environment variables. It never raises change
// events; listeners are accepted and never called.
type EnvSource struct {
	*Base
	prefix string
}

// NewEnvSource creates an EnvSource. A non-empty prefix is prepended to every
// looked-up key, so key "PORT" with prefix "APP_" reads APP_PORT.
func NewEnvSource(cfg *Config, prefix string, logger log.Logger) *EnvSource {
	s := &EnvSource{prefix: prefix}
	s.Base = NewBase(s, cfg, logger, StringLookup(s.GetStringValue))
	return s
}

// GetStringValue returns the environment variable for key.
func (s *EnvSource) GetStringValue(key string) (string, bool, error) {
	v, ok := os.LookupEnv(s.prefix + key)
	return v, ok, nil
}
