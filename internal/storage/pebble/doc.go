// Package pebblestore wraps a Pebble database with the durability
// policy and batch helpers the task store needs. All multi-key state
// changes in the store go through atomic batch commits so a crash never
// leaves a queue index referencing a half-written entry.
package pebblestore
