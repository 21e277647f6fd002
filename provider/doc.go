// Package provider implements the external tool-provider lifecycle: starting
// MCP server processes over a stdio transport, discovering the tools they
// contribute, reconciling a requested provider set against the live set, and
// guaranteeing that every spawned process is released on every exit path —
// failure, timeout, cancellation, removal, or full shutdown.
//
// The Manager is the single owner of all live connections. Other components
// only ever see immutable tool.Catalog snapshots; they must not hold a live
// connection across a suspension point because the Manager may tear it down
// concurrently with a reconciliation cycle.
package provider
