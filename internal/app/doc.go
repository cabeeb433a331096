// Package app assembles the dyncache process: backends selected by
// configuration, the dynamic cache service, the caching reverse proxy with
// its admin API, health and metrics endpoints, and the expiry sweeper.
package app
