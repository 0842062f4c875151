// Package audit emits structured security audit events. Events are typed
// and built directly from the known request shape; the sink is the shared
// JSON logger, and a failing sink never affects the triggering operation.
package audit

import (
	"context"
	"strings"
	"time"

	"accessd.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier for event correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event is a single audit record.
type Event struct {
	Name    string
	Subject string
	Outcome string
	Reason  string
	Fields  map[string]any
}

// Recorder writes audit events and satisfies the gate's AuditSink.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record writes one event to the audit log.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": ev.Name,
	}
	if ev.Subject != "" {
		entry["subject"] = ev.Subject
	}
	if ev.Outcome != "" {
		entry["outcome"] = ev.Outcome
	}
	if ev.Reason != "" {
		entry["reason"] = ev.Reason
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	for k, v := range ev.Fields {
		entry[k] = v
	}
	obs.LogRequest(entry)
}

func (r *Recorder) LoginSucceeded(ctx context.Context, username string) {
	r.Record(ctx, Event{Name: "auth.login", Subject: username, Outcome: "success"})
}

func (r *Recorder) LoginFailed(ctx context.Context, username, reason string) {
	r.Record(ctx, Event{Name: "auth.login", Subject: username, Outcome: "failure", Reason: reason})
}

func (r *Recorder) UserRegistered(ctx context.Context, username string, roles []string) {
	r.Record(ctx, Event{
		Name:    "auth.register",
		Subject: username,
		Outcome: "success",
		Fields:  map[string]any{"roles": roles},
	})
}

func (r *Recorder) PasswordChanged(ctx context.Context, username string) {
	r.Record(ctx, Event{Name: "auth.password_change", Subject: username, Outcome: "success"})
}

func (r *Recorder) UserDeleted(ctx context.Context, actor, username string) {
	r.Record(ctx, Event{
		Name:    "user.delete",
		Subject: actor,
		Outcome: "success",
		Fields:  map[string]any{"deleted": username},
	})
}

func (r *Recorder) AccessDenied(ctx context.Context, subject, requirement, path string) {
	r.Record(ctx, Event{
		Name:    "auth.denied",
		Subject: subject,
		Outcome: "failure",
		Reason:  requirement,
		Fields:  map[string]any{"path": path},
	})
}
