// Package logx wraps zerolog behind a small structured logging API.
//
// Components receive a Logger carrying a service name and optional bound
// fields. The process-wide Service owns the sinks (console, file) and can
// swap them at runtime when the logging config changes.
package logx
