// Package mqtt connects brightsync to a local MQTT broker.
//
// The broker is optional. When enabled it carries two kinds of traffic:
//
//	brightsync/state/...   retained monitor list and scanning flag (published)
//	brightsync/event/...   power and brightness notifications (subscribed)
//
// A Last Will on brightsync/system/status lets other processes notice when
// the daemon goes away.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.ScanningState(), map[string]bool{"scanning": true}, true)
//
// Tests that need a broker live behind the integration build tag.
package mqtt
