package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed message")

// Kind discriminates the wire shapes.
type Kind string

const (
	KindData Kind = "message"
	KindAck  Kind = "ack"
)

// ID identifies a message globally: an origin never reuses a Lamport time.
type ID struct {
	Origin int
	Time   int64
}

// String returns the wire form "<origin>-<time>".
func (id ID) String() string {
	return fmt.Sprintf("%d-%d", id.Origin, id.Time)
}

// ParseID parses the wire form produced by ID.String.
func ParseID(s string) (ID, error) {
	origin, ts, ok := strings.Cut(s, "-")
	if !ok {
		return ID{}, fmt.Errorf("%w: invalid msg_id %q", ErrMalformed, s)
	}
	pid, err := strconv.Atoi(origin)
	if err != nil || pid <= 0 {
		return ID{}, fmt.Errorf("%w: invalid origin in msg_id %q", ErrMalformed, s)
	}
	t, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || t <= 0 {
		return ID{}, fmt.Errorf("%w: invalid time in msg_id %q", ErrMalformed, s)
	}
	return ID{Origin: pid, Time: t}, nil
}

// Message is implemented by *Data and *Ack.
type Message interface {
	Kind() Kind
	MessageID() ID
}

// Data carries an application payload originated by Origin at Lamport time Time.
type Data struct {
	Origin  int
	Time    int64
	ID      ID
	Payload string
}

// NewData builds a DATA message stamped with the given origin and time.
func NewData(origin int, time int64, payload string) *Data {
	return &Data{
		Origin:  origin,
		Time:    time,
		ID:      ID{Origin: origin, Time: time},
		Payload: payload,
	}
}

func (d *Data) Kind() Kind    { return KindData }
func (d *Data) MessageID() ID { return d.ID }

// Ack reports that From has delivered the message ID.
type Ack struct {
	From int
	ID   ID
}

func (a *Ack) Kind() Kind    { return KindAck }
func (a *Ack) MessageID() ID { return a.ID }

// validate checks the invariants shared by every codec after decoding.
func validate(m Message) error {
	switch v := m.(type) {
	case *Data:
		if v.Origin <= 0 {
			return fmt.Errorf("%w: invalid pid %d", ErrMalformed, v.Origin)
		}
		if v.ID.Origin != v.Origin || v.ID.Time != v.Time {
			return fmt.Errorf("%w: msg_id %s does not match pid=%d time=%d", ErrMalformed, v.ID, v.Origin, v.Time)
		}
	case *Ack:
		if v.From <= 0 {
			return fmt.Errorf("%w: invalid from %d", ErrMalformed, v.From)
		}
	}
	return nil
}

// Codec converts messages to and from datagram payloads.
type Codec interface {
	Name() string
	Encode(m Message) ([]byte, error)
	Decode(b []byte) (Message, error)
}

// CodecByName returns the codec registered under name ("json" or "proto").
// An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON{}, nil
	case "proto", "protobuf":
		return Proto{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected json or proto)", name)
	}
}
