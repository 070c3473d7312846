// Package orchestrator owns the single coordination loop of the head agent.
//
// Ownership boundary:
// - the active scene and the single-focus invariant
// - dispatch of start, stop and switch commands onto the display host
// - connectivity fan-out to built-in scenes and the render tick
// - ordered shutdown: command channel first, then every running scene
//
// All mutable state is owned by the goroutine running Run. Other goroutines
// talk to it only through Submit and read it only through Snapshot.
package orchestrator
