// SPDX-License-Identifier: Apache-2.0

// Package config loads and merges client configuration from environment
// variables, command-line flags, and an optional JSON file.
//
// It also owns the device alias table: the core selection logic consults
// aliases exclusively through the LookupAlias method and never parses
// configuration itself.
package config
