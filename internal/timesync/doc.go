// Package timesync captures kernel clock readings for latency deltas.
//
// Socket timestamps are CLOCK_REALTIME values, so send and receive captures must come
// from the same clock. Timer deadlines are CLOCK_MONOTONIC. Both are read with
// clock_gettime directly instead of time.Now, which mixes in the runtime's own
// monotonic reading.
package timesync
