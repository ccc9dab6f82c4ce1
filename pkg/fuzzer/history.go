// Copyright 2025 madkv project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package fuzzer

import (
	"github.com/josehu07/madkv/pkg/kvio"
)

// The history checker decides, online, whether each harvested response is
// compatible with some assignment of every acknowledged update to an instant
// within its call/response interval, under a per-key real-time ordering.
// Memory stays bounded by trimming spans that no future or pending
// observation can witness.
//
// Note that the check predicates scan every client's span list, so a
// client's own past updates also serve as witnesses for its reads. Whether
// that is the right model for services with read-your-writes sessions is
// deliberately left as is; narrowing it would reject histories the checker
// has always accepted.

// updateSpan is one acknowledged non-read-only operation on a key. A nil
// value denotes a delete, or the initial "absent" sentinel (0, 0, nil).
type updateSpan struct {
	tsCall uint64
	tsResp uint64
	value  *string
}

// queuedSpan is a harvested response awaiting judgement.
type queuedSpan struct {
	tsCall uint64
	tsResp uint64
	resp   kvio.Resp
}

// History is the trimmed record of acknowledged operations.
type History struct {
	// Pending responses to check, naturally ordered by response timestamp.
	queue []queuedSpan

	// Per-key per-client trimmed deques of acknowledged updates.
	spans map[string][][]updateSpan

	// Per-client max update response timestamp applied so far.
	maxtr []uint64
}

// NewHistory creates an empty history covering every distinct key of any
// client's pool. Each key starts with one sentinel span per client.
func NewHistory(numClients int, keys [][]string) *History {
	spans := make(map[string][][]updateSpan)
	for _, cliKeys := range keys {
		for _, key := range cliKeys {
			if _, ok := spans[key]; ok {
				continue
			}
			perClient := make([][]updateSpan, numClients)
			for ci := range perClient {
				perClient[ci] = []updateSpan{{}} // (0, 0, nil) sentinel
			}
			spans[key] = perClient
		}
	}
	return &History{
		spans: spans,
		maxtr: make([]uint64, numClients),
	}
}

// AddToQueue appends a newly harvested response to the check queue.
// Timestamps must arrive strictly increasing: tsCall < tsResp and tsResp
// beyond every previously enqueued response.
func (h *History) AddToQueue(tsCall, tsResp uint64, resp kvio.Resp) {
	if tsCall >= tsResp {
		panic("history: response timestamp not after call timestamp")
	}
	if n := len(h.queue); n > 0 && h.queue[n-1].tsResp >= tsResp {
		panic("history: non-monotonic response timestamp enqueued")
	}
	h.queue = append(h.queue, queuedSpan{tsCall: tsCall, tsResp: tsResp, resp: resp})
}

// QueueLen returns the number of still-undecided queued responses.
func (h *History) QueueLen() int {
	return len(h.queue)
}

// UpdateStatus is the verdict of ApplyUpdate.
type UpdateStatus int

const (
	// UpdateOK means all checks triggered so far have passed.
	UpdateOK UpdateStatus = iota
	// UpdateUnexpectedKey means the update touches a key outside the
	// declared pools.
	UpdateUnexpectedKey
	// UpdateViolation means a queued response became decidable and failed;
	// the offending response is returned alongside.
	UpdateViolation
)

// ApplyUpdate records a newly acknowledged update, trims the updated key's
// span deques, and drains every queued response that became decidable. The
// first failed check is reported as a violation with the offending response.
func (h *History) ApplyUpdate(cidx int, tsCall, tsResp uint64, key string, value *string) (UpdateStatus, kvio.Resp) {
	keySpans, ok := h.spans[key]
	if !ok {
		return UpdateUnexpectedKey, nil
	}
	if last := len(keySpans[cidx]) - 1; keySpans[cidx][last].tsResp >= tsCall {
		panic("history: overlapping update spans for one client")
	}

	keySpans[cidx] = append(keySpans[cidx], updateSpan{tsCall: tsCall, tsResp: tsResp, value: value})
	h.spans[key] = keySpans
	h.maxtr[cidx] = tsResp

	// minComingTS lower-bounds the call timestamp of any future request:
	// every client is sequential, so its next call starts after its latest
	// applied update response.
	minComingTS := h.maxtr[0]
	for _, tr := range h.maxtr[1:] {
		if tr < minComingTS {
			minComingTS = tr
		}
	}
	minQueuedTS := ^uint64(0)
	for i := range h.queue {
		if h.queue[i].tsCall < minQueuedTS {
			minQueuedTS = h.queue[i].tsCall
		}
	}

	h.trimKey(keySpans, minComingTS, minQueuedTS)

	// Pop off now-decidable responses from the check queue.
	for len(h.queue) > 0 && h.queue[0].tsResp < minComingTS {
		entry := h.queue[0]
		h.queue = h.queue[1:]
		if !h.checkCall(&entry) {
			return UpdateViolation, entry.resp
		}
	}
	return UpdateOK, nil
}

// trimKey discards span-deque prefixes that no future or pending request can
// witness. For each client it finds the newest span fully older than both
// bounds and pops everything ending strictly before that span's call time.
// At least one fully-old span always survives as the baseline, so "the value
// just before" stays decidable; a deque never becomes empty.
func (h *History) trimKey(keySpans [][]updateSpan, minComingTS, minQueuedTS uint64) {
	bound := minComingTS
	if minQueuedTS < bound {
		bound = minQueuedTS
	}
	for ci, cliSpans := range keySpans {
		var keepTS uint64
		for i := len(cliSpans) - 1; i >= 0; i-- {
			if cliSpans[i].tsResp < bound {
				keepTS = cliSpans[i].tsCall
				break
			}
		}
		for len(cliSpans) > 1 && cliSpans[0].tsResp < keepTS {
			cliSpans = cliSpans[1:]
		}
		keySpans[ci] = cliSpans
	}
}

// checkCall judges a response popped off the check queue. Every variant
// accepts iff some span of some client matches the witnessed state, where a
// client's candidate spans are those started before the response that either
// overlap its window or are the latest one ended before its call; Stop
// responses are never acceptable here.
func (h *History) checkCall(entry *queuedSpan) bool {
	switch resp := entry.resp.(type) {
	case kvio.PutResp:
		keySpans, ok := h.spans[resp.Key]
		return ok && checkFound(keySpans, entry.tsCall, entry.tsResp, resp.Found)
	case kvio.SwapResp:
		keySpans, ok := h.spans[resp.Key]
		return ok && checkValue(keySpans, entry.tsCall, entry.tsResp, resp.OldValue)
	case kvio.GetResp:
		keySpans, ok := h.spans[resp.Key]
		return ok && checkValue(keySpans, entry.tsCall, entry.tsResp, resp.Value)
	case kvio.ScanResp:
		return h.checkScan(entry.tsCall, entry.tsResp, &resp)
	case kvio.DeleteResp:
		keySpans, ok := h.spans[resp.Key]
		return ok && checkFound(keySpans, entry.tsCall, entry.tsResp, resp.Found)
	}
	return false
}

// checkFound accepts a Put or Delete presence bit: some candidate span must
// agree on whether the key existed. A client's walk stops after the first
// span that ends strictly before the response's call time, since no earlier
// span of that client can overlap either.
func checkFound(keySpans [][]updateSpan, tsCall, tsResp uint64, found bool) bool {
	for _, cliSpans := range keySpans {
		for i := len(cliSpans) - 1; i >= 0; i-- {
			span := &cliSpans[i]
			if span.tsCall < tsResp && (span.value != nil) == found {
				return true
			}
			if span.tsResp < tsCall {
				break
			}
		}
	}
	return false
}

// checkValue accepts a Get value or Swap old-value: some candidate span (as
// in checkFound) must carry exactly that value (nil matching delete/sentinel
// spans).
func checkValue(keySpans [][]updateSpan, tsCall, tsResp uint64, value *string) bool {
	for _, cliSpans := range keySpans {
		for i := len(cliSpans) - 1; i >= 0; i-- {
			span := &cliSpans[i]
			if span.tsCall < tsResp && optEqual(span.value, value) {
				return true
			}
			if span.tsResp < tsCall {
				break
			}
		}
	}
	return false
}

// checkScan verifies local well-formedness of the result, then applies the
// Get predicate to every known key in range, treating keys missing from the
// result as reads of nil.
func (h *History) checkScan(tsCall, tsResp uint64, resp *kvio.ScanResp) bool {
	returned := make(map[string]*string, len(resp.Entries))
	for i := range resp.Entries {
		entry := &resp.Entries[i]
		if entry.Key < resp.KeyStart || entry.Key > resp.KeyEnd {
			return false // out-of-range key in scan result
		}
		if _, dup := returned[entry.Key]; dup {
			return false // duplicate key in scan result
		}
		returned[entry.Key] = &entry.Value
	}

	for key, keySpans := range h.spans {
		if key < resp.KeyStart || key > resp.KeyEnd {
			continue
		}
		if !checkValue(keySpans, tsCall, tsResp, returned[key]) {
			return false
		}
	}
	return true
}

func optEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
