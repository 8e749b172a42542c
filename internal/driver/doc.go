// Package driver runs the measurement loops for the two transport variants.
//
// TCPDriver is the active sender. Each iteration sends a fixed payload, records how
// long the send call took, arms a one-shot deadline and, until that deadline fires,
// drains error-queue completions through the correlator. UDPDriver is the passive
// receiver: every datagram's receive timestamps are compared to the time the
// datagram reached user space, with no correlation.
//
// Both loops are single-threaded and block only in Poller.Wait. Any error ends the
// loop; nothing is retried.
package driver
