// Package config loads the dyncache process configuration from environment
// variables and response cache profiles from YAML.
package config
