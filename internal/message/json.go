package message

import (
	"encoding/json"
	"fmt"
)

// JSON encodes messages as the textual wire format:
//
//	DATA: {"kind":"message","pid":1,"time":7,"msg_id":"1-7","msg":"hi"}
//	ACK:  {"kind":"ack","from":2,"msg_id":"1-7"}
type JSON struct{}

type jsonData struct {
	Kind  Kind   `json:"kind"`
	Pid   int    `json:"pid"`
	Time  int64  `json:"time"`
	MsgID string `json:"msg_id"`
	Msg   string `json:"msg"`
}

type jsonAck struct {
	Kind  Kind   `json:"kind"`
	From  int    `json:"from"`
	MsgID string `json:"msg_id"`
}

// jsonEnvelope is the union of both shapes; pointers detect missing fields.
type jsonEnvelope struct {
	Kind  Kind    `json:"kind"`
	Pid   *int    `json:"pid"`
	Time  *int64  `json:"time"`
	From  *int    `json:"from"`
	MsgID *string `json:"msg_id"`
	Msg   *string `json:"msg"`
}

// Name returns "json".
func (JSON) Name() string { return "json" }

// Encode serializes a *Data or *Ack.
func (JSON) Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case *Data:
		return json.Marshal(jsonData{
			Kind:  KindData,
			Pid:   v.Origin,
			Time:  v.Time,
			MsgID: v.ID.String(),
			Msg:   v.Payload,
		})
	case *Ack:
		return json.Marshal(jsonAck{
			Kind:  KindAck,
			From:  v.From,
			MsgID: v.ID.String(),
		})
	default:
		return nil, fmt.Errorf("cannot encode message of type %T", m)
	}
}

// Decode parses a datagram. Every failure wraps ErrMalformed.
func (JSON) Decode(b []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.MsgID == nil {
		return nil, fmt.Errorf("%w: missing msg_id", ErrMalformed)
	}
	id, err := ParseID(*env.MsgID)
	if err != nil {
		return nil, err
	}

	var m Message
	switch env.Kind {
	case KindData:
		if env.Pid == nil || env.Time == nil || env.Msg == nil {
			return nil, fmt.Errorf("%w: message requires pid, time and msg", ErrMalformed)
		}
		m = &Data{Origin: *env.Pid, Time: *env.Time, ID: id, Payload: *env.Msg}
	case KindAck:
		if env.From == nil {
			return nil, fmt.Errorf("%w: ack requires from", ErrMalformed)
		}
		m = &Ack{From: *env.From, ID: id}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, env.Kind)
	}

	if err := validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
