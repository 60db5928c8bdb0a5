package config

import "os"

func LoadDebugConfigFromEnv(cfg DebugConfig) DebugConfig {
	if os.Getenv("WPCV_DEBUG_LOG_REQUESTS") == "1" {
		cfg.LogRequests = true
	}
	if os.Getenv("WPCV_DEBUG_LOG_RESPONSES") == "1" {
		cfg.LogResponses = true
	}
	if level := os.Getenv("WPCV_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	return cfg
}
