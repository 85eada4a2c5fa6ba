// Package process supervises long-running helper binaries whose stdout is
// a stream of line events, such as "udevadm monitor".
//
// The manager restarts a process that exits on its own with exponential
// backoff, resets the backoff once a run has been stable, and stops the
// whole process group on shutdown.
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "udevadm",
//	    Binary:           "/usr/bin/udevadm",
//	    Args:             []string{"monitor", "--udev", "--subsystem-match=drm"},
//	    RestartOnFailure: true,
//	    OnLine:           handleEvent,
//	})
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
