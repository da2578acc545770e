// Package config loads and saves the board description: which line backend
// to use and, per sensor, its control lines, supply, clock and CSI link.
package config

// Store is the interface for persisting the board description.
type Store interface {
	// Load loads the board. Returns Default() if no file exists.
	Load() (*Board, error)

	// Save persists the board.
	Save(board *Board) error

	// Path returns the file path used by this store.
	Path() string
}
