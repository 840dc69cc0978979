// Package result collects plugin output into one place.
//
// Plugins run concurrently and hand their PluginResult to an Aggregator.
// The aggregator keeps every result under a mutex and also forwards it on a
// bounded channel so a single consumer can process results in arrival
// order. A full channel blocks the producing plugin until the consumer
// catches up.
package result
