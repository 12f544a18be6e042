package config

import "github.com/ilyakaznacheev/cleanenv"

// parseEnv overlays SCHEDKEEPER_* environment variables. Unset variables
// leave the current value untouched.
func parseEnv(config *Config) error {
	return cleanenv.ReadEnv(config)
}
