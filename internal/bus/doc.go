// Package bus owns the Command Channel: the bus session that turns inbound
// messages into command envelopes and connectivity transitions.
//
// Ownership boundary:
// - session state machine and reconnect backoff
// - topic classification and payload decode hand-off to package command
// - status publish for dispatched scenes
// - the Transport contract implemented by bus/mqtt and bus/redisbus
package bus
