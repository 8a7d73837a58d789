// Package outbox tracks messages this process originated that have not yet
// been acknowledged by every group member, and decides when each of them is
// due for retransmission.
//
// Every operation is serialized by a single mutex. The send path, the ACK
// branch of the receive loop and the retransmission loop all touch the
// outbox concurrently; none of them holds the lock across network I/O.
package outbox
