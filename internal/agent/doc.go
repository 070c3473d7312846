// Package agent wires the head runtime: command channel, display host,
// focus delegate, built-in scenes, orchestrator and admin API.
//
// Ownership boundary:
// - ServiceConfig defaults and validation
// - bootstrap of every collaborator from one config
// - process lifetime: signal handling and ordered teardown
package agent
