package ingester

import (
	"encoding/base64"
	"testing"

	"cosmoscan/internal/models"
	"cosmoscan/internal/rpc"
)

func TestMaybeDecodeBase64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain text passes through", "amount", "amount"},
		{"decodes printable text", base64.StdEncoding.EncodeToString([]byte("recipient")), "recipient"},
		{"empty stays empty", "", ""},
		{"non-canonical left alone", "abc", "abc"},
		{"binary payload left alone", base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0xff}), base64.StdEncoding.EncodeToString([]byte{0x01, 0x02, 0xff})},
		{"utf8 above ascii decodes", base64.StdEncoding.EncodeToString([]byte("päivä")), "päivä"},
		{"tab and newline allowed", base64.StdEncoding.EncodeToString([]byte("a\tb\n")), "a\tb\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := maybeDecodeBase64(tc.in); got != tc.want {
				t.Errorf("maybeDecodeBase64(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeEventsIndexDefault(t *testing.T) {
	t.Parallel()

	f := false
	events := NormalizeEvents([]rpc.Event{{
		Type: "transfer",
		Attributes: []rpc.EventAttribute{
			{Key: "sender", Value: "cosmos1abc"},
			{Key: "amount", Value: "5uatom", Index: &f},
		},
	}})

	if len(events) != 1 || len(events[0].Attributes) != 2 {
		t.Fatalf("events = %+v", events)
	}
	if !events[0].Attributes[0].Index {
		t.Error("index should default to true")
	}
	if events[0].Attributes[1].Index {
		t.Error("explicit false index lost")
	}
}

func TestParseRawLog(t *testing.T) {
	t.Parallel()

	logs := ParseRawLog(`[{"events":[{"type":"message","attributes":[{"key":"action","value":"send"}]}]},{"msg_index":1,"events":[]}]`)
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].MsgIndex != 0 {
		t.Errorf("omitted msg_index = %d, want 0 (array position)", logs[0].MsgIndex)
	}
	if logs[1].MsgIndex != 1 {
		t.Errorf("explicit msg_index = %d", logs[1].MsgIndex)
	}
	if logs[0].Events[0].Attributes[0].Value != "send" {
		t.Errorf("attributes = %+v", logs[0].Events[0].Attributes)
	}
}

func TestParseRawLogFailureYieldsEmpty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "out of gas", "{not json", `{"object":"not array"}`} {
		if logs := ParseRawLog(in); len(logs) != 0 {
			t.Errorf("ParseRawLog(%q) = %+v, want empty", in, logs)
		}
	}
}

func TestBuildLogsAppendsTxLevel(t *testing.T) {
	t.Parallel()

	txEvents := []models.ABCIEvent{{Type: "tx", Attributes: []models.ABCIEventAttr{{Key: "fee", Value: "1uatom", Index: true}}}}
	logs := BuildLogs(`[{"msg_index":0,"events":[]}]`, txEvents)
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[1].MsgIndex != -1 || logs[1].Events[0].Type != "tx" {
		t.Errorf("tx-level entry = %+v", logs[1])
	}

	// Unparsable raw_log still keeps tx-level events.
	logs = BuildLogs("out of gas", txEvents)
	if len(logs) != 1 || logs[0].MsgIndex != -1 {
		t.Errorf("logs = %+v", logs)
	}
}
