package config

import "github.com/ilyakaznacheev/cleanenv"

// parseEnv overlays MEDKEEPER_* environment variables. Unset variables keep
// the current values.
func parseEnv(config *Config) error {
	return cleanenv.ReadEnv(config)
}
