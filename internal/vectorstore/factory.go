package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/searchd/internal/config"
)

// NewStore creates the Store implementation selected by cfg.Backend.
// An empty backend defaults to milvus.
func NewStore(cfg config.VectorStoreConfig, logger *zap.Logger, opts ...StoreOption) (Store, error) {
	switch cfg.Backend {
	case "milvus", "":
		return NewMilvusStore(cfg, logger, opts...)
	case "chroma":
		return NewChromaStore(cfg, logger, opts...)
	case "qdrant":
		return NewQdrantStore(cfg, logger)
	case "pinecone":
		return NewPineconeStore(cfg, logger, opts...)
	case "weaviate":
		return NewWeaviateStore(cfg, logger, opts...)
	case "chromem":
		return NewChromemStore(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q (supported: milvus, chroma, qdrant, pinecone, weaviate, chromem)",
			ErrInvalidConfig, cfg.Backend)
	}
}
