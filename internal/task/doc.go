// Package task defines the data model shared by the store, dispatch
// table, and queue service: task types, the immutable Task envelope,
// status records, and the tagged error taxonomy.
package task
