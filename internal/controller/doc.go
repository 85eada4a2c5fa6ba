// Package controller drives the monitor registry.
//
// Watchers and the API push Trigger messages with Submit; Run dispatches
// each on its own goroutine. Scan and Update are single-flight, so a burst
// of triggers collapses into one pass. Observers hear about scanning state
// and every registry change.
//
//	ctrl, err := controller.New(controller.Options{
//	    Source:   source,
//	    Registry: monitor.NewRegistry(cfg.Monitors.MaxMonitorCount(), names),
//	    Names:    names,
//	    Store:    store,
//	})
//	go ctrl.Run(ctx)
//	ctrl.Submit(controller.TriggerScan)
package controller
