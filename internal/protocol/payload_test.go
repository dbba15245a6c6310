package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTargetUnionDecode(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Target
	}{
		{"name", `{"type":"NAME","name":"alice"}`, Target{Type: TargetName, Name: "alice"}},
		{"uuid", `{"type":"UUID","uuid":"8c3bfc83-f532-4d8a-9722-0c62a9d54a93"}`, Target{Type: TargetUUID, UUID: "8c3bfc83-f532-4d8a-9722-0c62a9d54a93"}},
		{"group", `{"type":"GROUP","group":"chat"}`, Target{Type: TargetGroup, Group: "chat"}},
		{"all", `{"type":"ALL"}`, Target{Type: TargetAll}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Target
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

// The tag alone disambiguates a name that looks like a uuid.
func TestTargetTagWins(t *testing.T) {
	var got Target
	in := `{"type":"NAME","name":"8c3bfc83-f532-4d8a-9722-0c62a9d54a93"}`
	if err := json.Unmarshal([]byte(in), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TargetName || got.UUID != "" {
		t.Fatalf("got %+v, want a NAME target", got)
	}
}

func TestRawMessageDataIsOpaque(t *testing.T) {
	// Key order and whitespace inside data must survive decode + re-encode.
	data := `{"zeta":1,  "alpha": [true , null]}`
	in := `{"type":"MESSAGE","target":{"type":"ALL"},"data":` + data + `}`

	var m RawMessage
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(m.Data, []byte(data)) {
		t.Fatalf("data mutated: %s", m.Data)
	}

	m.Origin = &Origin{UUID: uuid.New(), Name: "alice"}
	out, err := Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(out), data) {
		t.Fatalf("re-encoded frame rewrote data: %s", out)
	}
}

func TestSeqZeroIsEmitted(t *testing.T) {
	out, err := Encode(StatusReply(0, MessageSent()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(out), `"seq":0`) {
		t.Fatalf("seq 0 dropped: %s", out)
	}
}

func TestBroadcastOmitsSeq(t *testing.T) {
	out, err := Encode(StatusBroadcast(Unsubscribed("chat")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(out), `"seq"`) {
		t.Fatalf("broadcast carries seq: %s", out)
	}
	if !strings.Contains(string(out), `"UNSUBSCRIBED"`) || !strings.Contains(string(out), `"chat"`) {
		t.Fatalf("unexpected broadcast shape: %s", out)
	}
}

func TestOriginGroupOmittedWhenEmpty(t *testing.T) {
	out, err := Encode(Origin{UUID: uuid.New(), Name: "alice"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(out), `"group"`) {
		t.Fatalf("empty group serialized: %s", out)
	}
}

func TestErrorReplyShape(t *testing.T) {
	out, err := Encode(ErrorReply(7, ErrCodeNoSuchName, "no client named bob"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got Error
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if got.Type != TypeError || got.Code != ErrCodeNoSuchName || got.Seq == nil || *got.Seq != 7 {
		t.Fatalf("got %+v", got)
	}
}
