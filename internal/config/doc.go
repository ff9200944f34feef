// Package config loads, normalizes, and validates pressroom configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks for credentials such as PRESSROOM_API_TOKEN and
// PRESSROOM_LLM_API_KEY. The Config type centralizes every knob the daemon and
// CLI need so worker budgets, API binding, and external service credentials are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
