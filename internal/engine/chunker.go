package engine

import "strings"

// DefaultChunkWindow is the number of transcript segments per chunk.
const DefaultChunkWindow = 100

// ChunkSegments partitions segments into contiguous, non-overlapping windows
// of window segments each (the last may be shorter). Each chunk's text is the
// space-joined window. Empty input yields no chunks.
func ChunkSegments(segments []string, sourceURL string, window int) []Chunk {
	if window <= 0 {
		window = DefaultChunkWindow
	}
	if len(segments) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (len(segments)+window-1)/window)
	for start := 0; start < len(segments); start += window {
		end := min(start+window, len(segments))
		chunks = append(chunks, Chunk{
			Text:      strings.Join(segments[start:end], " "),
			SourceURL: sourceURL,
		})
	}
	return chunks
}
