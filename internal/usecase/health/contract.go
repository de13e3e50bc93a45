package health

import "context"

// DBPinger checks session store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// SceneChecker verifies that the scene data directory is readable.
type SceneChecker interface {
	HealthCheck(ctx context.Context) error
}
