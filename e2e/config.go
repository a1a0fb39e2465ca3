package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_ENABLED runs the suites against a live server, they are skipped otherwise
	Enabled   bool   `envconfig:"E2E_ENABLED" default:"false"`
	ServerURL string `envconfig:"E2E_SERVER_URL" default:"http://localhost:8080"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"match-chat"`
	// E2E_DEBUG_JSON dumps request and response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
