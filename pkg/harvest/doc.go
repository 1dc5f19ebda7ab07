// Package harvest drives a sequential offset/limit pagination loop against a
// paged catalog and writes everything it collected as one artifact.
//
// The source reports its total record count on every page, so the first
// request is issued with an unbounded total and the loop re-checks
// cursor < total after each response. Pages are fetched one at a time.
//
// Example usage:
//
//	cfg := harvest.DefaultConfig()
//	h, err := harvest.New(leetcodeSource, fileStore, cfg)
//	if err != nil {
//		return err
//	}
//	result, err := h.HarvestAll(ctx)
//
// The harvester:
//   - Starts at cursor 0 (or Config.StartCursor for a manual restart)
//   - Fetches one page per iteration with a per-request timeout
//   - Aborts on the first transport, protocol or shape error (no pagination past a gap)
//   - Stops at the iteration boundary when ctx is cancelled
//   - Writes the accumulated records exactly once, whatever the outcome
package harvest
