// Package report turns window reports into output.
//
// Console writes the fixed text lines operators read on stdout. SpanReporter
// exports each report as OpenTelemetry spans: one window span carrying the
// run-level values and one child span per stage carrying that stage's
// averages plus any custom attributes. Multi fans a report out to several
// reporters.
package report
