package redisbus

import "strings"

// globFor translates an MQTT topic filter into a Redis PSUBSCRIBE pattern.
// The glob is wider than the filter; matchFilter narrows it again.
func globFor(filter string) string {
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch level {
		case "+", "#":
			levels[i] = "*"
		default:
			levels[i] = escapeGlob(level)
		}
	}
	return strings.Join(levels, "/")
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matchFilter reports whether topic matches an MQTT filter: "+" is exactly
// one level and a trailing "#" is any remaining levels.
func matchFilter(filter, topic string) bool {
	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")
	for i, level := range fl {
		if level == "#" {
			return i == len(fl)-1
		}
		if i >= len(tl) {
			return false
		}
		if level != "+" && level != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
