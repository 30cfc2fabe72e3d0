// Package logging provides structured logging configuration for grpcprobe.
//
// This package wraps log/slog to provide consistent logging across all grpcprobe
// components. It supports configurable log levels and output formats.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//
//	logger.Info("schema loaded", "files", 42)
//	logger.Warn("skipped proto file", "path", path, "error", err)
//
// # Log Levels
//
// Four log levels are supported:
//   - Debug: Detailed information such as import resolution attempts
//   - Info: General operational information (calls made, schema reloads)
//   - Warn: Proto files that were skipped or only partially loaded
//   - Error: Error conditions that need attention
//
// # Output Formats
//
//   - Text: Human-readable format for terminals
//   - JSON: Structured format for log aggregation systems
//
// When Config.File is set, records are also written as JSON to that writer
// through a MultiHandler.
//
// # Integration
//
// Components should accept a *slog.Logger in their constructor or via an option.
// If no logger is provided, use logging.Nop() for a no-op logger.
package logging
