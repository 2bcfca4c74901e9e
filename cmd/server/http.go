// Package main provides the HTTP surface of the probe server.
package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quorumlabs/raftwire/pkg/raft"
	"github.com/quorumlabs/raftwire/pkg/registry"
	"github.com/quorumlabs/raftwire/pkg/transport"
	"github.com/quorumlabs/raftwire/pkg/types"
)

// StatusHandler handles HTTP status requests.
type StatusHandler struct {
	transport *transport.Transport
	addresses *registry.AddressMap
	addr      string
}

// NewStatusHandler creates a new StatusHandler reporting for the given
// transport and registry.
func NewStatusHandler(t *transport.Transport, m *registry.AddressMap, addr string) *StatusHandler {
	return &StatusHandler{transport: t, addresses: m, addr: addr}
}

// ServeHTTP handles GET /status requests.
// Returns JSON with the node's identity, live peer mappings, and send counters.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := types.StatusResponse{
		ServerID: h.transport.LocalID().String(),
		GroupID:  h.transport.GroupID().String(),
		Addr:     h.addr,
		Peers:    h.addresses.Snapshot(),
		Sends:    h.transport.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// peerRequest is the JSON body of POST /peers.
type peerRequest struct {
	ID   raft.ServerID `json:"id"`
	Addr string        `json:"addr"`
}

// PeersHandler administers address mappings over HTTP: POST /peers installs a
// non-expirable mapping, DELETE /peers/{id} drops one.
type PeersHandler struct {
	transport *transport.Transport
}

// NewPeersHandler creates a new PeersHandler for the given transport.
func NewPeersHandler(t *transport.Transport) *PeersHandler {
	return &PeersHandler{transport: t}
}

// ServeHTTP routes requests to the appropriate handler based on HTTP method.
func (h *PeersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleAdd(w, r)
	case http.MethodDelete:
		h.handleRemove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PeersHandler) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req peerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID.IsZero() {
		http.Error(w, "Peer id is required", http.StatusBadRequest)
		return
	}

	info, err := transport.EncodeServerInfo(req.Addr)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.transport.AddServer(req.ID, info); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *PeersHandler) handleRemove(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/peers/")
	id, err := raft.ParseServerID(idStr)
	if err != nil {
		http.Error(w, "Invalid peer id", http.StatusBadRequest)
		return
	}

	h.transport.RemoveServer(id)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
