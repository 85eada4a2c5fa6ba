// Package api implements the HTTP REST API and WebSocket server.
//
// Endpoints live under /api/v1:
//
//	GET  /health                     server and dependency status
//	GET  /metrics                    runtime, registry and controller counters
//	GET  /monitors                   registry snapshot
//	GET  /monitors/{id}              one monitor, id matched ignoring case
//	POST /monitors/scan              queue a scan (202)
//	POST /monitors/refresh           queue a brightness refresh (202)
//	PUT  /monitors/{id}/brightness   write brightness to the device
//	PUT  /monitors/{id}/name         rename a monitor
//	GET  /names                      persisted name cache
//	POST /names/persist              save current names
//	GET  /ws                         WebSocket event stream
//
// WebSocket clients subscribe to "monitors.changed" and "scanning.changed";
// the hub is registered as a controller observer when the server is built.
//
// The server runs without MQTT or a database; those only add fields to the
// health and metrics responses.
package api
