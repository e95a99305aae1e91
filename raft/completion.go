package raft

// BatchCompletionHandler decomposes a single transport-level batch
// acknowledgement into the per-entry completion callbacks that drive quorum
// vote counting. It treats the batch as atomic at the transport layer: no
// partial-success inference is attempted, so a single OnComplete/OnError
// fans out unchanged to every entry.
type BatchCompletionHandler struct {
	handlers []EntryCompletionHandler
}

// NewBatchCompletionHandler synthesizes one EntryCompletionHandler per
// SendRequest in batch via member.NewAppendEntryHandler, bound to
// (log, voteCounter, receiver, leadershipStale, newLeaderTerm, peer).
//
// batch is only read during this call and is not retained: the handler keeps
// just the synthesized per-entry callbacks, so the caller may reuse or clear
// batch once this returns.
func NewBatchCompletionHandler(member Member, receiver Node, peer *Peer, batch []*SendRequest) *BatchCompletionHandler {
	handlers := make([]EntryCompletionHandler, len(batch))
	for i, req := range batch {
		handlers[i] = member.NewAppendEntryHandler(
			req.Log, req.VoteCounter, receiver, req.LeadershipStale, req.NewLeaderTerm, peer,
		)
	}
	return &BatchCompletionHandler{handlers: handlers}
}

// OnComplete invokes every per-entry handler's OnComplete with the same
// result exactly once.
func (h *BatchCompletionHandler) OnComplete(result int64) {
	for _, entry := range h.handlers {
		entry.OnComplete(result)
	}
}

// OnError invokes every per-entry handler's OnError with the same error
// exactly once.
func (h *BatchCompletionHandler) OnError(err error) {
	for _, entry := range h.handlers {
		entry.OnError(err)
	}
}
