package logger

// Standard field names for structured logging. Use these instead of raw
// strings so log queries stay consistent across packages.
const (
	FieldComponent = "component"
	FieldOperation = "operation"

	FieldPieceID     = "piece_id"
	FieldCatalogID   = "catalog_id"
	FieldConnectorID = "connector_id"
	FieldNodeID      = "node_id"
	FieldEdgeID      = "edge_id"
	FieldRoute       = "route"
	FieldLayoutID    = "layout_id"

	FieldCount    = "count"
	FieldDistance = "distance_m"
	FieldPath     = "path"
	FieldError    = "error"
	FieldReason   = "reason"
)
