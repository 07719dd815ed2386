// Package email defines the outbound email boundary: a minimal EmailSender
// interface, a Postmark-backed production implementation, and a filesystem
// sender for local development.
package email
