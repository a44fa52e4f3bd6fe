// Package config loads the labbcat CLI configuration file.
//
// # Configuration Discovery
//
// Load follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/labbcat/config.toml
//  3. If the file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//
// # TOML Format
//
//	url = "https://labbcat.example.org/labbcat"
//	username = "ada"
//	password = "secret"
//	language = "en"
//	batch = false
//	verbose = false
//	timeout_seconds = 300
//	download_dir = "~/Downloads/labbcat"
//	log_level = "info"
//	log_format = "console"
//
// Every field is optional. A missing url is only an error once a command
// needs the server. Tilde expansion is applied to download_dir.
//
// # Defaults
//
//   - timeout_seconds: 300 (0 disables the per-request timeout)
//   - download_dir: ~/.local/share/labbcat/downloads
//   - log_level: info
//   - log_format: console (or json)
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, TOML parse errors, a negative timeout, an unknown
// log_level and a log_format other than console or json.
package config
