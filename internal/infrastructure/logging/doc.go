// Package logging provides structured logging for the Gray Logic WoT service.
//
// This package wraps Go's standard log/slog package. Every record carries
// the service name and version; components add a "component" attribute via
// Component so adapter, binding and discovery output can be told apart.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	adapterLog := logger.Component("adapter")
//	adapterLog.Info("thing loaded", "url", url)
package logging
