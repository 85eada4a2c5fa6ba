package controller

import "errors"

// Domain errors for the controller package.
//
//	if errors.Is(err, controller.ErrEnumerationFailed) {
//	    // the scan was abandoned; the registry is unchanged
//	}
var (
	// ErrEnumerationFailed is returned by Scan when the monitor source
	// cannot enumerate. The next scan trigger retries from scratch.
	ErrEnumerationFailed = errors.New("controller: enumeration failed")

	// ErrMissingDependency is returned by New when a required collaborator
	// is nil.
	ErrMissingDependency = errors.New("controller: missing dependency")
)
