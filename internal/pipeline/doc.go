// Package pipeline connects the content repository, embedding provider and
// vector store into the two flows the service exposes: ingesting documents
// into the index and answering semantic search queries against it.
package pipeline
