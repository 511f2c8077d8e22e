// Package config loads the procq runtime configuration. Values come
// from three layers, later layers winning: built-in defaults, an
// optional config file (YAML/JSON/TOML by extension), and PROCQ_*
// environment variables (PROCQ_WORKERS_PER_TYPE, PROCQ_LOG_LEVEL, and
// so on).
package config
