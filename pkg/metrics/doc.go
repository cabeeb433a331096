// Package metrics exposes Prometheus collectors for the dynamic cache.
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg, metrics.DefaultNamespace)
//	svc := dynamiccache.New(manager, store, tags, dynamiccache.WithMetrics(m))
//	r.Handle("/metrics", metrics.Handler(reg))
//
// Every recording method accepts a nil receiver, so components can be built
// without metrics.
package metrics
