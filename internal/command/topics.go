package command

import (
	"fmt"
	"strings"
)

const DefaultTopicPrefix = "app"

// Topics derives every bus topic from one prefix.
type Topics struct {
	Prefix string
}

func NewTopics(prefix string) Topics {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// Filter is the single-level wildcard subscription covering every command topic.
func (t Topics) Filter() string {
	return t.Prefix + "/+"
}

// Command returns the exact topic for one command kind.
func (t Topics) Command(kind Kind) string {
	return t.Prefix + "/" + string(kind)
}

// Status returns the outbound status topic for one scene.
func (t Topics) Status(name string) string {
	return t.Prefix + "/status/" + name
}

// Classify maps an inbound topic onto a command kind.
func (t Topics) Classify(topic string) (Kind, error) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	kind, ok := ParseKind(rest)
	if !ok || string(kind) != rest {
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return kind, nil
}
