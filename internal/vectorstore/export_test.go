package vectorstore

// Hooks for tests in the vectorstore_test package.
var (
	MilvusNormalize   = milvusNormalize
	ChromaNormalize   = chromaNormalize
	QdrantPointID     = qdrantPointID
	WeaviateClassName = weaviateClassName
	ClassDimension    = classDimension
	InBatches         = inBatches
)
