// Package quorum tracks acknowledgment sets against a fixed process group.
// A message is complete only when every member of the group has acknowledged
// it; acknowledgments from processes outside the group never count.
package quorum
