// Package server runs an HTTP handler with startup and shutdown hooks and
// graceful shutdown on SIGINT or SIGTERM.
package server
