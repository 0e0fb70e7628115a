// Package provider defines the plugin contract shared by all generation
// backends and the registry that resolves them. A plugin is either push-mode
// (progress streamed over a persistent socket) or pull-mode (progress polled
// from a status endpoint); the mode is a static property of the plugin,
// signalled by TransportURL.
package provider

import (
	"context"

	"mediagen/internal/status"
)

// MediaType classifies what a model produces.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// Model is an immutable, provider-scoped catalog entry.
type Model struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Media MediaType `json:"media_type"`
}

// Request carries the caller's generation parameters. It is consumed exactly
// once by StartGeneration; media-type specific payload mapping is
// adapter-private.
type Request struct {
	Prompt        string    `json:"prompt"`
	ModelID       string    `json:"model_id"`
	Media         MediaType `json:"media_type"`
	InputImageURL string    `json:"input_image_url,omitempty"`
	Resolution    string    `json:"resolution,omitempty"`
	AspectRatio   string    `json:"aspect_ratio,omitempty"`
}

// Task is the continuation returned by a successful submission. Handle is an
// opaque string whose structure is private to the issuing plugin; trackers
// must not parse, mutate, or reissue it, and exactly one tracker may resume
// it at a time.
type Task struct {
	ID     string `json:"task_id"`
	Handle string `json:"handle"`
}

// Plugin is the contract every backend implements.
type Plugin interface {
	// ID is the stable registry key for this backend.
	ID() string

	// Name is the human-readable backend name.
	Name() string

	// Configured reports whether credentials and at least one model list are
	// present. It is re-evaluated on every call and must be side-effect-free.
	Configured() bool

	// Enabled reports whether the plugin should be offered to callers.
	Enabled() bool

	// Models lists the catalog. Unconfigured plugins return nil.
	Models() []Model

	// Start performs exactly one outbound submission and returns the
	// continuation task.
	Start(ctx context.Context, req Request) (Task, error)

	// TransportURL returns the socket endpoint for push-mode plugins and ""
	// for pull-mode plugins.
	TransportURL() string
}

// EventSink is the fixed callback surface a push adapter drives while
// decoding one inbound frame. The tracker behind the sink owns clamping,
// terminal-state bookkeeping, and delivery to the caller.
type EventSink interface {
	// SetStatus records a canonical lifecycle stage.
	SetStatus(key status.Key)

	// SetProgress records an absolute percent in [0,100].
	SetProgress(percent float64)

	// AddProgress applies a relative increment to the current percent.
	AddProgress(delta float64)

	// SetQueuePosition records the provider-reported queue slot.
	SetQueuePosition(pos int)

	// Outputs forwards output locations verbatim.
	Outputs(urls []string)

	// Fail records a terminal provider error.
	Fail(message string)

	// Cleanup asks the tracker to close the transport connection.
	Cleanup()
}

// PushPlugin is implemented by backends that stream progress over a
// persistent connection.
type PushPlugin interface {
	Plugin

	// InitFrame builds the first frame to send after the connection opens.
	InitFrame(handle string) ([]byte, error)

	// HandleFrame decodes one inbound frame and drives the sink. A returned
	// error marks a decode anomaly: the tracker logs and drops the frame and
	// keeps the connection alive. Frames with unrecognized event types are
	// ignored without error.
	HandleFrame(data []byte, sink EventSink) error
}

// PullPlugin is implemented by backends with no streaming transport.
type PullPlugin interface {
	Plugin

	// CheckStatus performs exactly one status request and, only on a
	// terminal-success condition, one result fetch. Each call is stateless
	// and safe to retry.
	CheckStatus(ctx context.Context, handle string) (status.Update, error)
}
