// Package dispatch maps task types to processor capabilities. Adding a
// task type to the system requires only a registration entry here;
// worker and queue logic are type-agnostic.
package dispatch
