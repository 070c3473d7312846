// Package tools provides host command execution for adapters that shell out
// to desktop utilities.
//
// Ownership boundary:
// - bounded, context-aware command execution
//
// - exit-code normalization for missing binaries and failed runs
package tools
