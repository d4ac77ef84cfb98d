package port

import (
	"context"

	"docrag/internal/domain"
)

// Retriever turns a query into a bounded context. Failures degrade to an
// empty result instead of an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) domain.RetrievalResult
}
