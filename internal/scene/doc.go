// Package scene owns the built-in scenes a head can show without launching
// an external app.
//
// Ownership boundary:
// - the debug (diagnostics) and idle (clock) scenes
// - Resources shared read-only by every scene instance
// - the catalog of known built-in names
//
// Scenes draw into a display.Surface attached by the orchestrator; they do
// not own windows.
package scene
