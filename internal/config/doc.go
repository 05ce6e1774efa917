// Package config handles configuration loading, parsing, and validation.
// Settings come from an explicit config file, then a template file, then
// built-in defaults, with WARDEN_* environment variables overriding all
// three. The loaded Config is passed explicitly to each supervisor at
// construction; nothing in this package mutates the process environment.
package config
