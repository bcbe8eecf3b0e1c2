package sourcex

// NullSource never has a value and never changes.
type NullSource struct {
	*Base
}

// NewNullSource creates a NullSource.
func NewNullSource(cfg *Config) *NullSource {
	s := &NullSource{}
	s.Base = NewBase(s, cfg, nil, nil)
	return s
}

// GetStringValue always reports absent.
func (s *NullSource) GetStringValue(string) (string, bool, error) {
	return "", false, nil
}
