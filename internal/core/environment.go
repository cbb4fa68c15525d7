package core

import "strings"

// Environment is where the assistant runs. It picks the log format and the
// default log level.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"dev":   Development,
	"local": Development,
	"stage": Staging,
	"test":  Testing,
	"ci":    Testing,
	"prod":  Production,
}

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether logs should be machine readable JSON.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ParseEnvironment reads ENVIRONMENT case-insensitively and accepts short
// aliases such as "prod". Unknown values mean Development.
func ParseEnvironment(v string) Environment {
	v = strings.ToLower(strings.TrimSpace(v))
	switch env := Environment(v); env {
	case Development, Staging, Testing, Production:
		return env
	}
	if env, ok := environmentAliases[v]; ok {
		return env
	}
	return Development
}
