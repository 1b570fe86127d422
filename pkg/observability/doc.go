/*
Package observability turns engine hooks into Prometheus metrics and structured logs.

Both are delivered as domain.Hooks and can be combined with domain.ComposeHooks:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := domain.ComposeHooks(metrics.Hooks(), observability.LogHooks(logger))
	eng, _ := argview.New(argview.WithHooks(hooks))
*/
package observability
