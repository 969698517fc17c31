package vibee

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config provides typed access to configuration values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetStringSlice(key string) []string
}

// KVStore is the persistent key-value tier backing the caches. Get
// returns (nil, nil) on a missing key so callers can distinguish a miss
// from a storage failure.
type KVStore interface {
	Get(ctx context.Context, key string) (*KVEntry, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// Recommender produces track/artist pairs for a mood or vibe prompt.
// Implementations wrap a generative backend; failures surface as errors
// and callers degrade to empty sections.
type Recommender interface {
	Recommend(ctx context.Context, prompt string, count int) ([]Recommendation, error)
}

// MediaTransport receives resolved tracks for playback queueing. The
// core never plays audio itself.
type MediaTransport interface {
	Enqueue(ctx context.Context, tracks []Track) error
	Queue(ctx context.Context) ([]Track, error)
}

// WorkerPool limits concurrency for background tasks.
type WorkerPool interface {
	Submit(task func()) error
	SubmitWait(task func() error) error
	Shutdown(ctx context.Context) error
	Size() int
}
