// Package hooktel instruments hooks with OpenTelemetry.
//
// Tracing wraps every tap registered after it is installed in a span named
// "tapline.tap". Metrics records invocation, tap, error and result counts
// plus a tap duration histogram. Both default to the global providers, which
// are noops unless the application installs real ones.
package hooktel
