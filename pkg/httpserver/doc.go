// Package httpserver wraps net/http's Server with graceful shutdown,
// signal handling, functional options, and health check handlers.
package httpserver
