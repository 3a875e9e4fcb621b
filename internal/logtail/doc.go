// Package logtail reads the end of the Marquee log file and parses its
// records for the in-app activity view.
//
// Read uses a ring buffer so only the last maxLines are kept in memory no
// matter how large the file grows:
//
//	lines, err := logtail.Read(cfg.LogPath(), 200)
//	entries := logtail.ParseAll(lines, slog.LevelInfo)
//
// Parse understands the key=value records written by slog's text handler,
// including quoted values. Anything else is returned verbatim as the
// message so a stray panic trace still shows up.
package logtail
