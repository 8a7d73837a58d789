package message

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Proto encodes messages with the protobuf wire format. Field numbers:
//
//	1 kind   (varint: 1 DATA, 2 ACK)
//	2 pid / from (varint)
//	3 time   (varint, DATA only)
//	4 msg_id (bytes)
//	5 msg    (bytes, DATA only)
//
// Unknown fields are skipped on decode.
type Proto struct{}

const (
	fieldKind   protowire.Number = 1
	fieldSender protowire.Number = 2
	fieldTime   protowire.Number = 3
	fieldMsgID  protowire.Number = 4
	fieldMsg    protowire.Number = 5

	protoKindData = 1
	protoKindAck  = 2
)

// Name returns "proto".
func (Proto) Name() string { return "proto" }

// Encode serializes a *Data or *Ack.
func (Proto) Encode(m Message) ([]byte, error) {
	var b []byte
	switch v := m.(type) {
	case *Data:
		b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, protoKindData)
		b = protowire.AppendTag(b, fieldSender, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Origin))
		b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Time))
		b = protowire.AppendTag(b, fieldMsgID, protowire.BytesType)
		b = protowire.AppendString(b, v.ID.String())
		b = protowire.AppendTag(b, fieldMsg, protowire.BytesType)
		b = protowire.AppendString(b, v.Payload)
	case *Ack:
		b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, protoKindAck)
		b = protowire.AppendTag(b, fieldSender, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.From))
		b = protowire.AppendTag(b, fieldMsgID, protowire.BytesType)
		b = protowire.AppendString(b, v.ID.String())
	default:
		return nil, fmt.Errorf("cannot encode message of type %T", m)
	}
	return b, nil
}

// Decode parses a datagram. Every failure wraps ErrMalformed.
func (Proto) Decode(b []byte) (Message, error) {
	var (
		kind, sender, ts uint64
		msgID, msg       string
		seen             = make(map[protowire.Number]bool)
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			kind, n = protowire.ConsumeVarint(b)
		case num == fieldSender && typ == protowire.VarintType:
			sender, n = protowire.ConsumeVarint(b)
		case num == fieldTime && typ == protowire.VarintType:
			ts, n = protowire.ConsumeVarint(b)
		case num == fieldMsgID && typ == protowire.BytesType:
			msgID, n = protowire.ConsumeString(b)
		case num == fieldMsg && typ == protowire.BytesType:
			msg, n = protowire.ConsumeString(b)
		case num >= fieldKind && num <= fieldMsg:
			return nil, fmt.Errorf("%w: field %d has wire type %d", ErrMalformed, num, typ)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
		}
		if num >= fieldKind && num <= fieldMsg {
			seen[num] = true
		}
		b = b[n:]
	}

	if !seen[fieldMsgID] {
		return nil, fmt.Errorf("%w: missing msg_id", ErrMalformed)
	}
	id, err := ParseID(msgID)
	if err != nil {
		return nil, err
	}
	if !seen[fieldSender] {
		return nil, fmt.Errorf("%w: missing sender", ErrMalformed)
	}

	var m Message
	switch kind {
	case protoKindData:
		if !seen[fieldTime] || !seen[fieldMsg] {
			return nil, fmt.Errorf("%w: message requires time and msg", ErrMalformed)
		}
		m = &Data{Origin: int(sender), Time: int64(ts), ID: id, Payload: msg}
	case protoKindAck:
		m = &Ack{From: int(sender), ID: id}
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformed, kind)
	}

	if err := validate(m); err != nil {
		return nil, err
	}
	return m, nil
}
