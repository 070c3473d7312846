package command

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/headctl/internal/testutil/testlog"
)

func TestDecodeStartFlatBody(t *testing.T) {
	testlog.Start(t)
	cmd, err := Decode(KindStart, []byte(`{"name":"cam","command":"capture","args":["--device","0"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	start, ok := cmd.(Start)
	if !ok {
		t.Fatalf("unexpected variant: %T", cmd)
	}
	want := Start{Name: "cam", Command: "capture", Args: []string{"--device", "0"}}
	if !reflect.DeepEqual(start, want) {
		t.Fatalf("unexpected start: %+v", start)
	}
	if start.Builtin() {
		t.Fatalf("capture must not be a builtin launch")
	}
}

func TestDecodeStartWithoutArgs(t *testing.T) {
	testlog.Start(t)
	cmd, err := Decode(KindStart, []byte(`{"name":"debug","command":"true"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	start := cmd.(Start)
	if start.Args == nil || len(start.Args) != 0 {
		t.Fatalf("expected empty args, got %#v", start.Args)
	}
	if !start.Builtin() {
		t.Fatalf("expected builtin launch")
	}
}

func TestDecodeTaggedBody(t *testing.T) {
	testlog.Start(t)
	cmd, err := Decode(KindSwitch, []byte(`{"Switch":{"name":"idle"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cmd.Kind() != KindSwitch || cmd.SceneName() != "idle" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestDecodeTrimsSceneNames(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		kind    Kind
		payload string
	}{
		{KindStart, `{"name":" cam ","command":"mpv"}`},
		{KindStop, `{"name":"\tcam"}`},
		{KindSwitch, `{"Switch":{"name":"cam  "}}`},
	}
	for _, tc := range cases {
		cmd, err := Decode(tc.kind, []byte(tc.payload))
		if err != nil {
			t.Fatalf("kind=%s: decode: %v", tc.kind, err)
		}
		if cmd.SceneName() != "cam" {
			t.Fatalf("kind=%s: expected trimmed name, got %q", tc.kind, cmd.SceneName())
		}
	}
}

func TestDecodeTaggedBodyKindMismatch(t *testing.T) {
	testlog.Start(t)
	_, err := Decode(KindStop, []byte(`{"Start":{"name":"idle","command":"true"}}`))
	if !errors.Is(err, ErrInvalidCommand) {
		t.Fatalf("expected ErrInvalidCommand, got %v", err)
	}
}

func TestDecodeFailures(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		kind    Kind
		payload string
		want    error
	}{
		{KindStart, `{not json`, ErrDecode},
		{KindStart, `[]`, ErrDecode},
		{KindStart, `{"name":"cam"}`, ErrInvalidCommand},
		{KindStop, `{"name":"  "}`, ErrInvalidCommand},
		{KindSwitch, `{}`, ErrInvalidCommand},
		{KindStop, `{"name":"cam"} {"name":"x"}`, ErrDecode},
		{KindStart, `{"name":"cam","command":"x","args":"oops"}`, ErrDecode},
	}
	for _, tc := range cases {
		if _, err := Decode(tc.kind, []byte(tc.payload)); !errors.Is(err, tc.want) {
			t.Fatalf("kind=%s payload=%s: expected %v, got %v", tc.kind, tc.payload, tc.want, err)
		}
	}
}

func TestTopicsLayout(t *testing.T) {
	testlog.Start(t)
	topics := NewTopics(" /app/ ")
	if topics.Filter() != "app/+" {
		t.Fatalf("unexpected filter: %q", topics.Filter())
	}
	if topics.Command(KindSwitch) != "app/switch" {
		t.Fatalf("unexpected command topic: %q", topics.Command(KindSwitch))
	}
	if topics.Status("cam") != "app/status/cam" {
		t.Fatalf("unexpected status topic: %q", topics.Status("cam"))
	}
	if NewTopics("").Prefix != DefaultTopicPrefix {
		t.Fatalf("expected default prefix")
	}
}

func TestTopicsClassify(t *testing.T) {
	testlog.Start(t)
	topics := NewTopics("app")
	for _, kind := range Kinds() {
		got, err := topics.Classify(topics.Command(kind))
		if err != nil || got != kind {
			t.Fatalf("classify %s: got=%s err=%v", kind, got, err)
		}
	}
	for _, topic := range []string{"app/restart", "app/status/cam", "other/start", "app/", "app/START"} {
		if _, err := topics.Classify(topic); !errors.Is(err, ErrUnknownTopic) {
			t.Fatalf("expected ErrUnknownTopic for %q, got %v", topic, err)
		}
	}
}

func TestWrapStampsEnvelope(t *testing.T) {
	testlog.Start(t)
	a := Wrap("app/stop", Stop{Name: "cam"})
	b := Wrap("app/stop", Stop{Name: "cam"})
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if a.ReceivedAt.IsZero() {
		t.Fatalf("expected receive time")
	}
}
