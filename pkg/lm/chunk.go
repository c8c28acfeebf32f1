package lm

import "slices"

// DefaultChunkSize is the number of prompts sent in one completion request.
const DefaultChunkSize = 20

// Chunks splits items into consecutive slices of at most size elements.
func Chunks[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n:n])
		items = items[n:]
	}
	return out
}

// untilChunk is a batch of generation requests sharing one stop-sequence set.
type untilChunk struct {
	items []greedyItem
	until []string
}

// untilChunks splits items into batches of at most size, starting a new
// batch whenever the stop-sequence set changes.
func untilChunks(items []greedyItem, size int) []untilChunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out []untilChunk
	var cur untilChunk
	for _, it := range items {
		if len(cur.items) > 0 && (len(cur.items) >= size || !slices.Equal(it.req.Until, cur.until)) {
			out = append(out, cur)
			cur = untilChunk{}
		}
		if len(cur.items) == 0 {
			cur.until = it.req.Until
		}
		cur.items = append(cur.items, it)
	}
	if len(cur.items) > 0 {
		out = append(out, cur)
	}
	return out
}
