// Package middleware provides request middleware for MCP protocol handlers.
//
// Middleware follows the standard pattern where each middleware wraps the
// next handler in the chain, allowing pre- and post-processing of requests.
//
// # Basic Usage
//
// Create and compose middleware:
//
//	chain := middleware.Chain(
//	    middleware.Recover(),
//	    middleware.Logging(logger),
//	)
//	handler := chain(baseHandler)
//
// # Available Middleware
//
//   - Recover: Catches panics and converts them to internal errors
//   - Timeout: Enforces request deadlines
//   - Logging: Logs request details and timing
//   - RateLimit: Token-bucket rate limiting with per-key buckets
//   - OTel: OpenTelemetry tracing and metrics
//
// # Default Stacks
//
// Pre-configured middleware stacks are available for common use cases:
//
//	// Recover + Logging
//	stack := middleware.DefaultStack(logger)
//
//	// Recover + Timeout + Logging
//	stack := middleware.DefaultStackWithTimeout(logger, 30*time.Second)
package middleware
