// Package config handles configuration loading for chat-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${GATEWAY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	streaming:
//	  watchdog: "60s"
//	  typing_debounce: "1s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # WebSocket, API, health, metrics
//
// Database:
//
//	database:
//	  path: "/var/lib/chat-gateway/gateway.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${GATEWAY_JWT_SECRET}"
//
// Credits:
//
//	credits:
//	  default_limit: 1000   # per-company budget for new ledgers
//	  costs:                # per-provider-code cost overrides
//	    SEARCH: 3
//
// Provider backends, keyed by provider code:
//
//	providers:
//	  PLAIN:
//	    url: "http://llm-proxy:9000/stream"
//	    model: "gpt-4o"
//	  SEARCH:
//	    url: "http://llm-proxy:9001/stream"
//	    model: "gpt-4o-search"
//	    api_key: "${SEARCH_API_KEY}"
//
// Streaming timing:
//
//	streaming:
//	  watchdog: "60s"        # max wait between chunks
//	  typing_debounce: "1s"  # server-side typing notice window
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/chat-gateway/gateway.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
