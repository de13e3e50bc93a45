package domain

import "errors"

var (
	// ErrSceneNotFound signals an unknown scene identifier (no topology source at all).
	ErrSceneNotFound = errors.New("scene not found")
	// ErrEmptyTopology signals a scene whose topology parsed to zero nodes.
	ErrEmptyTopology = errors.New("scene topology has no nodes")
	// ErrDetailRefUnresolved signals a detail entry whose node reference cannot be resolved.
	ErrDetailRefUnresolved = errors.New("detail entry references unknown node")
	// ErrSessionNotFound signals a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
