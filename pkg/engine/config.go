package engine

import (
	"fmt"
	"time"
)

// EngineConfig contains configuration for the configuration rule engine.
type EngineConfig struct {
	// MaxConditionDepth caps how deep a condition tree is walked. Deeper trees
	// evaluate to false.
	// Default: 32.
	MaxConditionDepth int

	// StoreTimeout bounds a single rule store call. The caller's context
	// deadline still applies when it is shorter.
	// Default: 2s.
	StoreTimeout time.Duration

	// BatchConcurrency is the number of batch queries evaluated at once.
	// Default: 8.
	BatchConcurrency int

	// MaxBatchSize is the largest batch accepted by EvaluateBatch.
	// Default: 100.
	MaxBatchSize int
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxConditionDepth: 32,
		StoreTimeout:      2 * time.Second,
		BatchConcurrency:  8,
		MaxBatchSize:      100,
	}
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.MaxConditionDepth <= 0 {
		return fmt.Errorf("%w: max condition depth must be positive", ErrInvalidConfig)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("%w: store timeout must be positive", ErrInvalidConfig)
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("%w: batch concurrency must be positive", ErrInvalidConfig)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max batch size must be positive", ErrInvalidConfig)
	}
	return nil
}

// WithMaxConditionDepth sets the condition depth limit.
func (c *EngineConfig) WithMaxConditionDepth(depth int) *EngineConfig {
	c.MaxConditionDepth = depth
	return c
}

// WithStoreTimeout sets the store call timeout.
func (c *EngineConfig) WithStoreTimeout(timeout time.Duration) *EngineConfig {
	c.StoreTimeout = timeout
	return c
}

// WithBatchConcurrency sets the batch worker count.
func (c *EngineConfig) WithBatchConcurrency(n int) *EngineConfig {
	c.BatchConcurrency = n
	return c
}

// WithMaxBatchSize sets the maximum batch size.
func (c *EngineConfig) WithMaxBatchSize(n int) *EngineConfig {
	c.MaxBatchSize = n
	return c
}
