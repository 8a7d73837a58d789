// Package message defines the two datagram shapes exchanged by group members
// (DATA and ACK), the message identifier, and the codecs that turn them into
// bytes. Two codecs are provided: JSON, the default wire format, and a
// compact protobuf wire encoding. All members of a group must agree on the
// codec.
package message
