// Package sizing computes worker process counts from host resources and
// static policy. HTTP serving capacity scales with cores because it is
// bounded by request I/O parallelism; task concurrency does not, because
// generation work is bounded by external resource contention instead.
package sizing

import "runtime"

// minHTTPWorkers is the floor applied when the core count is zero or
// undetectable.
const minHTTPWorkers = 1

// Per-role task concurrency policy. Heavier task classes get lower
// limits: image generation is resource-heavier than blog generation.
const (
	BlogGenerationConcurrency  = 6
	ImageGenerationConcurrency = 4
	DefaultQueueConcurrency    = 4
)

// DetectCores reports the host's usable core count.
func DetectCores() int {
	return runtime.NumCPU()
}

// HTTPPoolSize returns the serving pool size for the given core count:
// 2C+1 for C >= 1, and the configured minimum of 1 when the count is
// zero or undetectable.
func HTTPPoolSize(cores int) int {
	if cores < 1 {
		return minHTTPWorkers
	}
	return 2*cores + 1
}

// TaskConcurrency returns the static concurrency limit for a task role
// name, falling back to the catch-all default for unknown roles.
func TaskConcurrency(role string) int {
	switch role {
	case "blog_generation":
		return BlogGenerationConcurrency
	case "image_generation":
		return ImageGenerationConcurrency
	default:
		return DefaultQueueConcurrency
	}
}
