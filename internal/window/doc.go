// Package window keeps fixed-size circular buffers of latency samples and turns them
// into periodic averages.
//
// All buffers of an Aggregator share one sample index. Samples are written at
// index % N and the index only moves on Commit, so every stage of one iteration
// lands in the same slot. A report is produced each time the index reaches a
// positive multiple of N. Slots that were never written hold zero and are part of
// the average, which biases the first reports toward zero.
package window
