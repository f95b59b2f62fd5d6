package domain

import "fmt"

// ConfigurationError reports a missing or malformed rule configuration.
// It is fatal: evaluation cannot start without a complete RuleSet.
type ConfigurationError struct {
	Source string // file the configuration was read from, may be empty
	Key    string // offending key, empty when the whole document is at fault
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Source != "" && e.Key != "":
		return fmt.Sprintf("configuration %s: key %q: %v", e.Source, e.Key, e.Err)
	case e.Key != "":
		return fmt.Sprintf("configuration: key %q: %v", e.Key, e.Err)
	case e.Source != "":
		return fmt.Sprintf("configuration %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("configuration: %v", e.Err)
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps err for the given key.
func NewConfigurationError(key string, err error) *ConfigurationError {
	return &ConfigurationError{Key: key, Err: err}
}
