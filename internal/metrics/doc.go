// Package metrics turns the ECS task descriptor and the per-container stats
// snapshot into Prometheus metrics. It correlates stats entries with their
// containers, derives CPU, memory, network and block I/O values per container,
// sums them into a task row and renders everything in the text exposition
// format from a registry that lives only for the duration of one scrape.
package metrics
