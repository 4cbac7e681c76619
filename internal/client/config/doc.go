// Package config loads runtime configuration for the poolctl CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with --config.
//  3. POOL_* environment variables.
//  4. Command-line flags, applied by the CLI after Load.
//
// # JSON schema
//
// Durations are either strings like "15s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "key_file": "/home/me/.gophpool/key.json",
//	  "request_timeout": "15s"
//	}
package config
