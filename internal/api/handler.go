package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/gaianet/quantum-mesh/internal/history"
	"github.com/gaianet/quantum-mesh/internal/mesh"
	"github.com/gaianet/quantum-mesh/internal/messenger"
	"github.com/gaianet/quantum-mesh/internal/provider"
	"github.com/gaianet/quantum-mesh/internal/report"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	network *mesh.Network
	router  *provider.Router
	logger  *zap.Logger
}

// NewHandler creates a new API handler. The provider router may be nil when
// no collaborators are configured.
func NewHandler(network *mesh.Network, router *provider.Router, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{network: network, router: router, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/status", h.status)

		r.Get("/nodes", h.listNodes)
		r.Post("/nodes", h.createNode)
		r.Get("/nodes/{id}", h.getNode)
		r.Get("/nodes/{id}/query", h.queryNode)
		r.Post("/nodes/{id}/ask", h.askNode)

		r.Post("/messages", h.sendMessage)
		r.Post("/broadcast", h.sendBroadcast)
		r.Post("/bridge", h.spacetimeBridge)
		r.Post("/resonate", h.resonate)

		r.Get("/topology", h.topology)
		r.Get("/topology/analysis", h.analysis)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "quantum-mesh"})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.network.Status())
}

func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.network.NodeIDs())
}

type createNodeRequest struct {
	ID       string        `json:"id"`
	Position mesh.Position `json:"position"`
}

func (h *Handler) createNode(w http.ResponseWriter, r *http.Request) {
	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	node, err := h.network.AddNode(req.ID, req.Position)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, mesh.ErrDuplicateNode) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        node.ID(),
		"position":  node.Position(),
		"neighbors": node.Neighbors(),
	})
}

func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, ok := h.network.Node(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
		return
	}

	strengths := make(map[string]float64)
	for _, peer := range node.Neighbors() {
		if s, ok := node.LinkStrength(peer); ok {
			strengths[peer] = s
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             node.ID(),
		"position":       node.Position(),
		"connections":    node.Neighbors(),
		"link_strengths": strengths,
		"event_count":    node.Timeline().EventCount(),
		"messenger":      node.Messenger().Stats(),
	})
}

type sendMessageRequest struct {
	Source      string         `json:"source"`
	Destination string         `json:"destination"`
	Payload     map[string]any `json:"payload"`
	Mode        string         `json:"mode,omitempty"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	err := h.network.SendMessage(req.Source, req.Destination, req.Payload,
		messenger.TransferMode(req.Mode))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, mesh.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}

type broadcastRequest struct {
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if err := h.network.Broadcast(req.Source, req.Payload); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mesh.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast sent"})
}

func (h *Handler) queryNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "q parameter is required"})
		return
	}

	result, err := h.network.QueryAggregate(id, query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mesh.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type bridgeRequest struct {
	NodeA          string  `json:"node_a"`
	NodeB          string  `json:"node_b"`
	TemporalOffset float64 `json:"temporal_offset"`
}

func (h *Handler) spacetimeBridge(w http.ResponseWriter, r *http.Request) {
	var req bridgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	bridge, err := h.network.SpacetimeBridge(req.NodeA, req.NodeB, req.TemporalOffset)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mesh.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, bridge)
}

type resonateRequest struct {
	Frequency float64 `json:"frequency"`
}

func (h *Handler) resonate(w http.ResponseWriter, r *http.Request) {
	var req resonateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Frequency <= 0 {
		req.Frequency = 432.0
	}

	rep, err := h.network.Resonate(req.Frequency)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mesh.ErrInsufficientNodes) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) topology(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.network.TopologySnapshot())
}

func (h *Handler) analysis(w http.ResponseWriter, r *http.Request) {
	snap := h.network.TopologySnapshot()
	body := map[string]any{
		"emergence_probability": report.EmergenceProbability(snap),
		"hubs":                  report.Hubs(snap),
	}
	if dist, ok := report.AnalyzeStrengths(snap); ok {
		body["strength_distribution"] = dist
	}
	writeJSON(w, http.StatusOK, body)
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

// askNode routes a prompt to the node's collaborator and records the answer
// as a response event on the node's timeline.
func (h *Handler) askNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.network.Node(id); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
		return
	}
	if h.router == nil || h.router.Size() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no collaborator configured"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}

	answer, err := h.router.Ask(r.Context(), id, req.Prompt)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	ev, err := history.NewEvent(id, history.EventResponse,
		map[string]any{"prompt": req.Prompt, "text": answer}, nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.network.RecordEvent(id, ev)

	writeJSON(w, http.StatusOK, map[string]string{
		"node_id": id,
		"answer":  answer,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
