package message

import (
	"errors"
	"testing"
)

func TestJSON_EncodeWireFormat(t *testing.T) {
	c := JSON{}

	b, err := c.Encode(NewData(2, 7, "hello"))
	if err != nil {
		t.Fatalf("Encode data: %v", err)
	}
	want := `{"kind":"message","pid":2,"time":7,"msg_id":"2-7","msg":"hello"}`
	if string(b) != want {
		t.Errorf("Data wire format:\n got  %s\n want %s", b, want)
	}

	b, err = c.Encode(&Ack{From: 3, ID: ID{Origin: 2, Time: 7}})
	if err != nil {
		t.Fatalf("Encode ack: %v", err)
	}
	want = `{"kind":"ack","from":3,"msg_id":"2-7"}`
	if string(b) != want {
		t.Errorf("Ack wire format:\n got  %s\n want %s", b, want)
	}
}

func TestJSON_DecodeData(t *testing.T) {
	m, err := JSON{}.Decode([]byte(`{"kind":"message","pid":1,"time":1,"msg_id":"1-1","msg":"hi"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, ok := m.(*Data)
	if !ok {
		t.Fatalf("Expected *Data, got %T", m)
	}
	if d.Origin != 1 || d.Time != 1 || d.Payload != "hi" || d.ID != (ID{Origin: 1, Time: 1}) {
		t.Errorf("Unexpected data: %+v", d)
	}
}

func TestJSON_DecodeAck(t *testing.T) {
	m, err := JSON{}.Decode([]byte(`{"kind":"ack","from":3,"msg_id":"1-1"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	a, ok := m.(*Ack)
	if !ok {
		t.Fatalf("Expected *Ack, got %T", m)
	}
	if a.From != 3 || a.ID != (ID{Origin: 1, Time: 1}) {
		t.Errorf("Unexpected ack: %+v", a)
	}
}

func TestJSON_DecodeEmptyPayload(t *testing.T) {
	m, err := JSON{}.Decode([]byte(`{"kind":"message","pid":4,"time":9,"msg_id":"4-9","msg":""}`))
	if err != nil {
		t.Fatalf("Empty payload must be accepted: %v", err)
	}
	if m.(*Data).Payload != "" {
		t.Errorf("Expected empty payload")
	}
}

func TestJSON_DecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: `hello`},
		{name: "truncated", input: `{"kind":"ack","from":3`},
		{name: "empty object", input: `{}`},
		{name: "unknown kind", input: `{"kind":"nack","from":3,"msg_id":"1-1"}`},
		{name: "missing kind", input: `{"from":3,"msg_id":"1-1"}`},
		{name: "ack without from", input: `{"kind":"ack","msg_id":"1-1"}`},
		{name: "ack with bad id", input: `{"kind":"ack","from":3,"msg_id":"x"}`},
		{name: "ack with zero from", input: `{"kind":"ack","from":0,"msg_id":"1-1"}`},
		{name: "data without msg", input: `{"kind":"message","pid":1,"time":1,"msg_id":"1-1"}`},
		{name: "data without time", input: `{"kind":"message","pid":1,"msg_id":"1-1","msg":"x"}`},
		{name: "data id mismatch", input: `{"kind":"message","pid":1,"time":2,"msg_id":"1-1","msg":"x"}`},
		{name: "wrong field type", input: `{"kind":"message","pid":"one","time":1,"msg_id":"1-1","msg":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := JSON{}.Decode([]byte(tt.input))
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Expected ErrMalformed, got message=%v err=%v", m, err)
			}
		})
	}
}
