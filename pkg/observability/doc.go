// Package observability configures logging and build metrics.
//
// Logging uses logrus with either the text formatter (full timestamps) or the
// JSON formatter. Metrics are kept in a private Prometheus registry and, since
// the builder is a batch job with no listener, exported by writing a
// node-exporter textfile at the end of each build.
package observability
