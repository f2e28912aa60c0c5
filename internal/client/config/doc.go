// Package config loads runtime configuration for the MedKeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or --config.
//  3. MEDKEEPER_* environment variables.
//  4. Persistent command-line flags bound with BindFlags.
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "10s" or integer
// nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "admin_secret": "secretKey",
//	  "session_db": "medkeeper-cli.db",
//	  "request_timeout": "10s"
//	}
package config
