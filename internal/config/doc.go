// Package config handles loading and parsing the Marquee configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/marquee/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//
// # Default Values
//
//   - Config file: ~/.config/marquee/config.toml
//   - API base URL: http://localhost:3022
//   - Log directory: ~/.local/state/marquee (log file marquee.log)
//   - Log level: info
//   - Credentials: ~/.config/marquee/credentials.toml
//   - Outbound rate limit: 10 requests per second
//   - Cache retention: 5 minutes
//
// # TOML Format
//
//	api_url = "http://localhost:3022"
//	log_dir = "~/.local/state/marquee"
//	log_level = "debug"
//	credentials_path = "~/.config/marquee/credentials.toml"
//	requests_per_second = 10.0
//	cache_retention_seconds = 300
//
//	[stale_seconds]
//	sessions = 10
//	movies = 300
//
// Every field is optional. Tilde expansion is performed on paths, and
// [stale_seconds] entries override the built-in staleness window of the
// named cache collection.
//
// # Error Handling
//
// A missing file is not an error. Open, read and parse failures are
// returned wrapped ("parse config: ...") so the caller can abort startup.
package config
