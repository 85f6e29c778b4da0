// Package tracing integrates observability back-ends with the lattix
// runtime to provide distributed tracing information. Instrumentation
// is kept in a separate package so that applications which do not
// require tracing can exclude it from their build.
package tracing
