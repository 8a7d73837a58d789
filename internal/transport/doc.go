// Package transport moves datagrams between group members.
//
// The transport makes no delivery promises: datagrams can be lost,
// duplicated or reordered, and the layers above must tolerate all three.
// Broadcast is fire-and-forget; a failed send to one target is logged and
// never prevents the sends to the remaining targets.
//
// UDP is the production implementation. Network provides an in-memory,
// optionally lossy, datagram network for tests.
package transport
