package server

import "errors"

var (
	// ErrPathRequired is returned when the verdict endpoint gets no path
	ErrPathRequired = errors.New("path is required")

	// ErrPathNotAbsolute is returned for paths that do not start with /
	ErrPathNotAbsolute = errors.New("path must start with /")

	// ErrAccessNotConfigured is returned when no page access store is wired
	ErrAccessNotConfigured = errors.New("page access policy not configured")
)
