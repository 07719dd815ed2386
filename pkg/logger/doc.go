// Package logger builds configured slog.Logger instances with consistent
// formats across environments and automatic injection of request-scoped
// attributes from context.
package logger
