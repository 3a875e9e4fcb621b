package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Back       key.Binding
	Refresh    key.Binding
	Account    key.Binding

	// View switching
	ViewMovies   key.Binding
	ViewCinemas  key.Binding
	ViewTickets  key.Binding
	ViewActivity key.Binding

	// Navigation
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Top      key.Binding
	Bottom   key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Open     key.Binding

	// Seat map
	ToggleSeat key.Binding
	ClearSeats key.Binding
	Book       key.Binding

	// Tickets
	Pay           key.Binding
	NextCategory  key.Binding
	PrevCategory  key.Binding
	ToggleFollow  key.Binding
	CycleLogLevel key.Binding

	// Forms
	NextField  key.Binding
	PrevField  key.Binding
	ToggleMode key.Binding
	Submit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "Back"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh view"),
		),
		Account: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Sign in / out"),
		),

		ViewMovies: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Movies"),
		),
		ViewCinemas: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Cinemas"),
		),
		ViewTickets: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "My tickets"),
		),
		ViewActivity: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "Activity log"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/left", "Seat left"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/right", "Seat right"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("ctrl+u", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("ctrl+d", "Page down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Open"),
		),

		ToggleSeat: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Select seat"),
		),
		ClearSeats: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Clear selection"),
		),
		Book: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Book selected seats"),
		),

		Pay: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Pay booking"),
		),
		NextCategory: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next category"),
		),
		PrevCategory: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous category"),
		),
		ToggleFollow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Toggle follow"),
		),
		CycleLogLevel: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "Cycle level filter"),
		),

		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "Sign in / register"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Submit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.ViewMovies, k.ViewCinemas, k.ViewTickets, k.ViewActivity, k.Back},
		{k.Up, k.Down, k.Top, k.Bottom, k.PageUp, k.PageDown, k.Open},
		{k.Left, k.Right, k.ToggleSeat, k.ClearSeats, k.Book},
		{k.NextCategory, k.Pay},
		{k.ToggleFollow, k.CycleLogLevel},
		{k.Refresh, k.Account, k.CycleTheme, k.Help, k.Quit},
	}
}
