package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDecode         = errors.New("command: decode failed")
	ErrInvalidCommand = errors.New("command: invalid command")
	ErrUnknownTopic   = errors.New("command: unknown topic")
)

// BuiltinCommand is the sentinel launch command for scenes the agent renders itself.
const BuiltinCommand = "true"

// Kind names one command variant; it is also the last topic segment.
type Kind string

const (
	KindStart  Kind = "start"
	KindStop   Kind = "stop"
	KindSwitch Kind = "switch"
)

// Kinds lists the variants in topic order.
func Kinds() []Kind {
	return []Kind{KindStart, KindStop, KindSwitch}
}

// ParseKind maps a topic segment onto a command kind.
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if slices.Contains(Kinds(), k) {
		return k, true
	}
	return "", false
}

// AppCommand is the tagged start/stop/switch variant.
type AppCommand interface {
	Kind() Kind
	SceneName() string
	validate() error
}

// Start launches a named scene backed by command and args.
type Start struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

func (c Start) Kind() Kind        { return KindStart }
func (c Start) SceneName() string { return c.Name }

// Builtin reports whether the launch uses the built-in sentinel command.
func (c Start) Builtin() bool {
	return strings.TrimSpace(c.Command) == BuiltinCommand
}

func (c Start) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return wrapInvalid("start: missing name")
	}
	if strings.TrimSpace(c.Command) == "" {
		return wrapInvalid("start: missing command")
	}
	return nil
}

// Stop terminates a named scene.
type Stop struct {
	Name string `json:"name"`
}

func (c Stop) Kind() Kind        { return KindStop }
func (c Stop) SceneName() string { return c.Name }

func (c Stop) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return wrapInvalid("stop: missing name")
	}
	return nil
}

// Switch focuses a named scene and minimizes the previously active one.
type Switch struct {
	Name string `json:"name"`
}

func (c Switch) Kind() Kind        { return KindSwitch }
func (c Switch) SceneName() string { return c.Name }

func (c Switch) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return wrapInvalid("switch: missing name")
	}
	return nil
}

// Envelope is one decoded command on the orchestrator queue.
type Envelope struct {
	ID         string
	Topic      string
	ReceivedAt time.Time
	Command    AppCommand
}

// Wrap stamps a decoded command with a correlation id.
func Wrap(topic string, cmd AppCommand) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Topic:      topic,
		ReceivedAt: time.Now(),
		Command:    cmd,
	}
}

func wrapInvalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidCommand, reason)
}
