// Package types holds shared data structures used across raftwire packages.
// Keeps things DRY - no more duplicate type definitions scattered around.
package types

import (
	"github.com/quorumlabs/raftwire/pkg/registry"
	"github.com/quorumlabs/raftwire/pkg/transport"
)

// StatusResponse is the JSON payload returned by the /status endpoint.
// Both the HTTP server and TUI fetcher use this, so it lives here.
type StatusResponse struct {
	ServerID string             `json:"server_id"`
	GroupID  string             `json:"group_id"`
	Addr     string             `json:"addr"`
	Peers    []registry.Mapping `json:"peers"`
	Sends    transport.Stats    `json:"sends"`
}
