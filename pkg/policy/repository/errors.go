package repository

import "errors"

var (
	// ErrNotLoaded is returned by Reload before any successful Load.
	ErrNotLoaded = errors.New("rules not loaded")

	// ErrWatchRunning is returned when Watch is called twice.
	ErrWatchRunning = errors.New("watch already started")
)
