package featureflag

type Flag string

const (
	// Forces frustum queries to test one sphere against one plane at a time.
	FlagDisableBatchedPlaneTest Flag = "DISABLE_BATCHED_PLANE_TEST"

	// Skips the cell sphere early-out in frustum queries.
	FlagDisableCellCulling Flag = "DISABLE_CELL_CULLING"

	// Turns off per-query latency and object counters.
	FlagDisableQueryMetrics Flag = "DISABLE_QUERY_METRICS"

	// Stops the scene from pushing frame visibility to stream clients.
	FlagDisableVisibilityBroadcast Flag = "DISABLE_VISIBILITY_BROADCAST"
)
