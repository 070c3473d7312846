// Package command owns the remote command vocabulary shared by the bus and the orchestrator.
//
// Ownership boundary:
// - start/stop/switch variants and their JSON bodies
//
// - command topic layout under one prefix
//
// - envelopes carried on the in-process command queue
//
// Commands are immutable once decoded and are only built by Decode.
package command
