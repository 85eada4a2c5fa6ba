package namecache

import "errors"

// Domain errors for the namecache package.
//
//	if errors.Is(err, namecache.ErrStoreFailed) {
//	    // persisted names could not be read or written
//	}
var (
	// ErrStoreFailed is returned when the backing store cannot load or save.
	ErrStoreFailed = errors.New("namecache: store failed")

	// ErrInvalidRecord is returned for records without a device instance id.
	ErrInvalidRecord = errors.New("namecache: invalid record")
)
