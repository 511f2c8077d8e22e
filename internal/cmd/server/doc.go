// Package serverrun wires the full node: logger, Pebble database,
// task store, dispatch table, and queue service, then blocks until
// the process is signalled to stop.
package serverrun
