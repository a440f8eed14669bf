// Package prometheus exports thread lifecycle counters and the pin table size
// as Prometheus metrics.
package prometheus
