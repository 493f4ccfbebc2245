package core

import (
	"strings"

	"github.com/rs/zerolog"
)

// Environment represents the deployment environment of the service.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the environment corresponds to production.
func (e Environment) IsProduction() bool {
	return e == Production
}

// LogLevel is the minimum level the logger emits in this environment.
func (e Environment) LogLevel() zerolog.Level {
	switch e {
	case Production:
		return zerolog.InfoLevel
	case Testing:
		return zerolog.WarnLevel
	default:
		return zerolog.DebugLevel
	}
}

// ParseEnvironment normalises the provided value into one of the known environments.
// Unknown values fall back to Development.
func ParseEnvironment(v string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(v))) {
	case Production:
		return Production
	case Staging:
		return Staging
	case Testing:
		return Testing
	default:
		return Development
	}
}
