package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutDetailWidth is the minimum width to show a detail pane beside lists.
	LayoutDetailWidth = 120
)

// Activity log limits.
const (
	// ActivityLineLimit is the number of log lines read per refresh.
	ActivityLineLimit = 500
)

// Timing constants.
const (
	// DefaultUIInterval is the refresh cadence of clocks and toasts.
	DefaultUIInterval = time.Second

	// ToastLifetime is how long a notice stays on screen.
	ToastLifetime = 4 * time.Second

	// MaxToasts is the number of notices shown at once.
	MaxToasts = 3

	// ActionTimeout bounds a booking, payment or sign-in request from the UI.
	ActionTimeout = 45 * time.Second
)

// chromeHeight is the number of rows taken by the header and command bar.
const chromeHeight = 2
