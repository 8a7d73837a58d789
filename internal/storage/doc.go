// Package storage provides the local record of delivered message ids. The
// delivered set is append-only for the lifetime of the process and is the
// sole guard that makes delivery to the application happen exactly once,
// however many copies of a message arrive.
package storage
