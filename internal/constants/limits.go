package constants

// Limits for worker scheduling
const (
	// MaxWorkers is the upper clamp for a worker group's thread count.
	// Assumed to be less than 2^16 elsewhere.
	MaxWorkers = 512

	// MinWorkers is the lower clamp for a worker group's thread count.
	MinWorkers = 1
)
