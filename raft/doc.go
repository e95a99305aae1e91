// Package raft implements the per-follower log dispatch core of a Raft
// leader: it turns a leader's concurrently produced stream of appended log
// entries into an ordered, batched, per-follower delivery stream so that a
// follower never stalls behind an entry reordered on the wire by a parallel
// send.
//
// The package does not implement Raft itself. Election, term management,
// commit-index advancement and log persistence are the responsibility of
// the surrounding Member implementation; this package only consumes it
// (see Member).
package raft
