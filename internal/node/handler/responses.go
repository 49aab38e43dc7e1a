package handler

import (
	"time"

	"beacon/internal/node/models"
	"beacon/internal/presence"
)

// NodeResponse is the public view of a node. Contact email is never exposed.
type NodeResponse struct {
	Handle          string     `json:"handle"`
	Endpoint        string     `json:"endpoint"`
	Tags            []string   `json:"tags"`
	RegisteredAt    time.Time  `json:"registered_at"`
	LastHeartbeatAt time.Time  `json:"last_heartbeat_at"`
	UptimeHours     float64    `json:"uptime_hours"`
	DataSince       *time.Time `json:"data_since,omitempty"`
	Tier            string     `json:"tier"`
	Presence        string     `json:"presence"`
}

// RegisterResponse adds whether the handle was new.
type RegisterResponse struct {
	NodeResponse
	Created bool `json:"created"`
}

// HeartbeatResponse reports the stored state after the heartbeat.
type HeartbeatResponse struct {
	Handle          string    `json:"handle"`
	Outcome         string    `json:"outcome"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	Presence        string    `json:"presence"`
}

func toNodeResponse(n *models.Node, state presence.State) NodeResponse {
	tags := []string(n.Tags)
	if tags == nil {
		tags = []string{}
	}
	return NodeResponse{
		Handle:          n.Handle.Display(),
		Endpoint:        n.Endpoint,
		Tags:            tags,
		RegisteredAt:    n.RegisteredAt,
		LastHeartbeatAt: n.LastHeartbeatAt,
		UptimeHours:     n.UptimeHours,
		DataSince:       n.DataSince,
		Tier:            n.Tier.String(),
		Presence:        state.String(),
	}
}
