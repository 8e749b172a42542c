// Package correlate matches error-queue completions to the send that produced them
// and turns each completion message into a stage-tagged latency sample.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│   send path (driver)                    │
//	│   - captures send time                  │
//	│   - SendCounter.Advance(bytes)          │
//	└─────────────────┬───────────────────────┘
//	                  │ counter
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   Correlator.Correlate                  │  ← one error-queue message
//	│   - LegacyTimestamp   → timestampns     │
//	│   - SoftwareTimestamp → timestamping    │
//	│   - Completion        → stage, seq check│
//	└─────────────────┬───────────────────────┘
//	                  │ Sample
//	                  ▼
//	┌─────────────────────────────────────────┐
//	│   window.Aggregator                     │
//	└─────────────────────────────────────────┘
//
// Only one send is in flight at a time, so the completion sequence must always be
// the counter minus one. Anything else means completions were reordered or
// duplicated, and the measurement can no longer be trusted.
package correlate
