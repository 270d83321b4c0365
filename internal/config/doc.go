// Package config loads, normalizes, and validates landing daemon configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as LANDING_LLM_API_KEY. The Config type
// centralizes every knob the daemon and CLI need so artifact roots, session
// timeouts, and provider credentials are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
