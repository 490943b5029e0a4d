// Package config defines configuration structures for the ckandump CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (CKANDUMP_ prefix)
//   - YAML configuration file
//
// Precedence is flags over environment over file over defaults.
package config
