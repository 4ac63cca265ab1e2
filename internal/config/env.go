package config

import (
	"github.com/caarlos0/env/v11"
)

// Env holds process-level settings that come from the environment rather than
// the config file
type Env struct {
	Addr        string `env:"AUTH_FRONT_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	Environment string `env:"AUTH_FRONT_ENV" envDefault:"production"`
}

// LoadEnv parses process environment settings
func LoadEnv() (*Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, err
	}
	return &e, nil
}
