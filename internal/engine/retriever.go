package engine

import (
	"context"

	"github.com/CorvoHisui/qa-youtube-chatbot/internal/engine/vectordb"
)

// collectionRetriever serves retrieval from one built collection.
type collectionRetriever struct {
	c *vectordb.Collection
}

// NewCollectionRetriever adapts a vector collection to Retriever.
func NewCollectionRetriever(c *vectordb.Collection) Retriever {
	return collectionRetriever{c: c}
}

func (r collectionRetriever) Retrieve(ctx context.Context, query string, k int) (RetrievalResult, error) {
	matches, err := r.c.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make(RetrievalResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, ScoredChunk{Chunk: Chunk{Text: m.Text, SourceURL: m.Source}, Score: m.Score})
	}
	return out, nil
}
