package bus

import (
	"os"
	"strings"
)

const DefaultClientPrefix = "protosuit-engine-client"

// ClientID returns the bus identity "<prefix>-<hostname>".
func ClientID(prefix string) string {
	host, err := os.Hostname()
	if err != nil {
		host = ""
	}
	return ClientIDFor(prefix, host)
}

func ClientIDFor(prefix, host string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultClientPrefix
	}
	host = strings.TrimSpace(host)
	if host == "" {
		host = "unknown"
	}
	return prefix + "-" + host
}
