package config

import "time"

// Config holds runtime settings for the MedKeeper CLI.
type Config struct {
	ServerEndpointAddr string        `env:"MEDKEEPER_SERVER_ADDR"`
	AdminSecret        string        `env:"MEDKEEPER_ADMIN_SECRET"`
	SessionDB          string        `env:"MEDKEEPER_SESSION_DB"`
	RequestTimeout     time.Duration `env:"MEDKEEPER_REQUEST_TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.AdminSecret = ""
	c.SessionDB = "medkeeper-cli.db"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig builds a Config from defaults, the JSON file named in args and
// the environment. Command-line flags are applied later by cobra through
// BindFlags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
