package handler

import (
	"net/mail"
	"net/url"
	"strings"
	"time"

	"beacon/internal/node/models"
	"beacon/pkg/domain"
	dErrors "beacon/pkg/domain-errors"
)

const maxEndpointLength = 2048

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Handle       string     `json:"handle"`
	Endpoint     string     `json:"endpoint"`
	Tags         []string   `json:"tags"`
	UptimeHours  float64    `json:"uptime_hours"`
	DataSince    *time.Time `json:"data_since,omitempty"`
	ContactEmail string     `json:"contact_email,omitempty"`

	parsed models.Registration
}

// Validate normalizes and validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	handle, err := domain.ParseHandle(r.Handle)
	if err != nil {
		return err
	}
	endpoint, err := parseEndpoint(r.Endpoint)
	if err != nil {
		return err
	}
	tags, err := domain.ParseTags(r.Tags)
	if err != nil {
		return err
	}
	if r.UptimeHours < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "uptime_hours must not be negative")
	}
	email := strings.TrimSpace(r.ContactEmail)
	if email != "" {
		addr, err := mail.ParseAddress(email)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "contact_email is not a valid address")
		}
		email = addr.Address
	}
	var dataSince *time.Time
	if r.DataSince != nil {
		ds := r.DataSince.UTC()
		dataSince = &ds
	}

	r.parsed = models.Registration{
		Handle:       handle,
		Endpoint:     endpoint,
		Tags:         tags,
		UptimeHours:  r.UptimeHours,
		DataSince:    dataSince,
		ContactEmail: email,
	}
	return nil
}

func (r *RegisterRequest) Registration() models.Registration {
	return r.parsed
}

// HeartbeatRequest is the body of POST /heartbeat. Timestamp is optional and
// defaults to the registry's receive time.
type HeartbeatRequest struct {
	Handle      string     `json:"handle"`
	Endpoint    string     `json:"endpoint"`
	Tags        []string   `json:"tags"`
	UptimeHours float64    `json:"uptime_hours"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`

	parsed models.Heartbeat
}

func (r *HeartbeatRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	handle, err := domain.ParseHandle(r.Handle)
	if err != nil {
		return err
	}
	endpoint, err := parseEndpoint(r.Endpoint)
	if err != nil {
		return err
	}
	tags, err := domain.ParseTags(r.Tags)
	if err != nil {
		return err
	}
	if r.UptimeHours < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "uptime_hours must not be negative")
	}

	r.parsed = models.Heartbeat{
		Handle:      handle,
		Endpoint:    endpoint,
		Tags:        tags,
		UptimeHours: r.UptimeHours,
	}
	if r.Timestamp != nil {
		r.parsed.Timestamp = r.Timestamp.UTC()
	}
	return nil
}

func (r *HeartbeatRequest) Heartbeat() models.Heartbeat {
	return r.parsed
}

func parseEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "endpoint is required")
	}
	if len(raw) > maxEndpointLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "endpoint is too long")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "endpoint must be an http(s) URL")
	}
	return strings.TrimRight(u.String(), "/"), nil
}
