// Package config provides configuration for pagemirror.
//
// Settings come from four layers, highest priority first: command line
// flags, PAGEMIRROR_* environment variables (optionally loaded from a
// .env file), the YAML config file, and the defaults of NewConfig.
package config
