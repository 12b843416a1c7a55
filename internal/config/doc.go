// Package config provides centralized configuration management for the
// scaffold. It loads configuration from multiple sources, validates it
// eagerly, and exposes a type-safe API for the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern SCAFFOLD_* for namespacing:
//
//	SCAFFOLD_SERVER_HOST=0.0.0.0
//	SCAFFOLD_SERVER_PORT=8000
//	SCAFFOLD_HTTP_TITLE=go_server
//	SCAFFOLD_HTTP_CORS_ORIGINS=https://example.com,https://app.example.com
//	SCAFFOLD_LOGGING_LEVEL=info
//
// # Validation
//
// All configuration is validated at load time, before the server or any
// background task starts:
//
//	- Host must be a loopback name, 0.0.0.0, or a valid IPv4 address
//	- Ports must be within 1-65535
//	- Version must follow semantic versioning (x.y.z)
//	- CORS origins must be "*" or a comma-separated list of
//	  http(s):// origins
//	- Log levels are case-normalized and checked against a fixed set
//
// A validation failure is fatal: the process reports the error and
// exits non-zero.
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
