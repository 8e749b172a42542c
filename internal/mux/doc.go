// Package mux is the readiness loop the drivers block in: a level-triggered epoll
// instance plus timerfd deadlines on CLOCK_MONOTONIC.
//
// Wait is the only suspension point of a driver. It blocks with no timeout; every
// other descriptor operation in the loop is non-blocking.
package mux
