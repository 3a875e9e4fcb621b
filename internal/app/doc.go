// Package app provides the orchestration layer for the Marquee application.
//
// # Overview
//
// This package wires together configuration, logging, the API client, the
// query cache, the mutation engine, the background syncer, and the UI. It is
// the composition root where all dependencies are initialized and connected.
//
// # Startup
//
//  1. Load ~/.config/marquee/config.toml (defaults when missing)
//  2. Open the log file and install it as the default slog logger
//  3. Load UI preferences (theme, start view, last username)
//  4. Build the API client with a token source and a rate limiter
//  5. Create the cache store and start its retention janitor
//  6. Restore the saved session and connect logout to cache eviction
//  7. Launch the syncer goroutine
//  8. Start the TUI and block until the user exits or the context cancels
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()     Read config.toml
//	       ├─────> logging.Open()    File logger
//	       ├─────> wire()            Client, cache, query, auth, mutations
//	       ├─────> Syncer.Start()    Probe and revalidate in background
//	       └─────> ui.Run()          Start TUI (blocks)
//
//	Syncer loop:
//	┌─────────────────────────────────────────┐
//	│ Syncer.Round()                          │
//	│  ├─> Probe (GET /settings)              │
//	│  ├─> cache.RevalidateStale()            │
//	│  └─> state.Record()                     │
//	│      └─> header reads state.Snapshot()  │
//	└─────────────────────────────────────────┘
//
// Each round waits one interval (default 15 seconds). Consecutive failures
// double the wait up to 30 seconds. Revalidation only refetches entries the
// UI is subscribed to, so hidden screens cost nothing.
//
// # Error Handling
//
// Fatal errors (returned from Run): unreadable or invalid config, a log file
// that cannot be opened, an unusable API URL. Everything after startup is
// recoverable: failed fetches stay in the cache entry, failed mutations are
// rolled back and surfaced as notices, and the syncer keeps retrying.
package app
