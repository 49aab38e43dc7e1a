package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"beacon/internal/node/service"
	"beacon/pkg/domain"
	"beacon/pkg/platform/httputil"
	"beacon/pkg/requestcontext"
)

// Handler serves node registration, heartbeats and lookups.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// Register mounts node endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/register", h.HandleRegister)
	r.Post("/heartbeat", h.HandleHeartbeat)
	r.Get("/node/{handle}", h.HandleGetNode)
}

// HandleRegister handles POST /register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Register(ctx, req.Registration(), requestcontext.CallerCredential(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	node := result.Node
	httputil.WriteJSON(w, status, RegisterResponse{
		NodeResponse: toNodeResponse(node, node.Presence(requestcontext.Now(ctx))),
		Created:      result.Created,
	})
}

// HandleHeartbeat handles POST /heartbeat.
func (h *Handler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[HeartbeatRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	node, outcome, err := h.service.Heartbeat(ctx, req.Heartbeat())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, HeartbeatResponse{
		Handle:          node.Handle.Display(),
		Outcome:         string(outcome),
		LastHeartbeatAt: node.LastHeartbeatAt,
		Presence:        node.Presence(requestcontext.Now(ctx)).String(),
	})
}

// HandleGetNode handles GET /node/{handle}.
func (h *Handler) HandleGetNode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	handle, err := domain.ParseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.Get(ctx, handle)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toNodeResponse(view.Node, view.Presence))
}
