// Package display owns the Display Host: the running-scene registry, process
// spawning for launched apps, and terminal windows for built-in scenes.
//
// Ownership boundary:
// - name uniqueness across running scenes
// - graceful terminate and reap of launched processes
// - surfaces that built-in scenes render into
//
// Focus and minimize are not handled here; see package focus.
package display
