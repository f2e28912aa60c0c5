package config

import "github.com/spf13/pflag"

// BindFlags registers the persistent CLI flags on fs with the current values
// of cfg as defaults, so flags override every earlier source.
//
//	-a, --addr        address and port of the backend server
//	-k, --secret      shared admin secret used to mint admin tokens
//	-f, --session-db  path of the local session cache
//	-t, --timeout     per-request timeout
//	-c, --config      JSON config file (read before flag parsing)
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ServerEndpointAddr, "addr", "a", c.ServerEndpointAddr, "address and port to access server")
	fs.StringVarP(&c.AdminSecret, "secret", "k", c.AdminSecret, "shared admin secret")
	fs.StringVarP(&c.SessionDB, "session-db", "f", c.SessionDB, "local session cache file")
	fs.DurationVarP(&c.RequestTimeout, "timeout", "t", c.RequestTimeout, "per-request timeout")
	fs.StringP("config", "c", "", "path to JSON config file")
}
