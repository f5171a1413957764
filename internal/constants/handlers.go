package constants

import "time"

// Handler constants
const (
	// RequestTimeout bounds a single API request, including the embedding call
	RequestTimeout = 60 * time.Second

	// EmbeddingTimeout bounds a single call to the embedding server
	EmbeddingTimeout = 30 * time.Second

	// ShutdownTimeout is the grace period for in-flight requests on shutdown
	ShutdownTimeout = 30 * time.Second
)
