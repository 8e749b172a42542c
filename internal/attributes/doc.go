// Package attributes evaluates user expressions that decorate report spans.
//
// Expressions use the expr language and see a Scope: the process environment,
// the transport name and, for per-stage attributes, the stage, window size and
// average latency of the report being exported.
//
// Three evaluators:
//   - Evaluator: custom span attributes, maps expand to dotted keys
//   - TraceIDEvaluator: trace ID for every span of the run (32 hex chars)
//   - ParentIDEvaluator: parent span ID for the run's root spans (16 hex chars)
//
// Invalid trace IDs are hashed with SHA-256 to produce valid IDs.
// Invalid parent IDs result in a null parent (zero span ID).
package attributes
