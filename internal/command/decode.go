package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Decode parses one JSON body for kind.
//
// Bodies are flat (`{"name":...}`). The externally tagged form `{"Start":{...}}`
// is accepted when its tag names the same kind. Names are trimmed here so
// every later lookup sees the same key.
func Decode(kind Kind, payload []byte) (AppCommand, error) {
	body, err := untag(kind, payload)
	if err != nil {
		return nil, err
	}

	var cmd AppCommand
	switch kind {
	case KindStart:
		var c Start
		err = strictUnmarshal(body, &c)
		c.Name = strings.TrimSpace(c.Name)
		if c.Args == nil {
			c.Args = []string{}
		}
		cmd = c
	case KindStop:
		var c Stop
		err = strictUnmarshal(body, &c)
		c.Name = strings.TrimSpace(c.Name)
		cmd = c
	case KindSwitch:
		var c Switch
		err = strictUnmarshal(body, &c)
		c.Name = strings.TrimSpace(c.Name)
		cmd = c
	default:
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrDecode, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
	}
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func untag(kind Kind, payload []byte) ([]byte, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, kind, err)
	}
	if len(probe) != 1 {
		return payload, nil
	}
	for key, inner := range probe {
		tagged, ok := ParseKind(key)
		if !ok || !isTagKey(key) {
			return payload, nil
		}
		if tagged != kind {
			return nil, fmt.Errorf("%w: tag %q on %s topic", ErrInvalidCommand, key, kind)
		}
		return inner, nil
	}
	return payload, nil
}

// isTagKey accepts only the capitalised variant names used by the tagged form.
func isTagKey(key string) bool {
	return key != "" && key[:1] == strings.ToUpper(key[:1])
}

func strictUnmarshal(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data")
	}
	return nil
}
