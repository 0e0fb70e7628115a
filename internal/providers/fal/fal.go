package fal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mediagen/internal/infra"
	"mediagen/internal/provider"
	"mediagen/internal/status"
)

const providerID = "fal"

// fal queue status vocabulary.
const (
	queueInQueue    = "IN_QUEUE"
	queueInProgress = "IN_PROGRESS"
	queueCompleted  = "COMPLETED"
	queueFailed     = "FAILED"
	queueError      = "ERROR"
)

// Fixed per-stage percent values. The queue exposes no fine-grained
// percentage, so these are UX tuning constants, not protocol contracts.
const (
	percentQueued     = 10
	percentInProgress = 55
	percentComplete   = 100
)

// statusTable maps every queue status to a canonical key. Unmapped values
// fall back to generating so that new provider statuses degrade gracefully.
var statusTable = map[string]status.Key{
	queueInQueue:    status.KeyQueued,
	queueInProgress: status.KeyGenerating,
	queueCompleted:  status.KeyComplete,
	queueFailed:     status.KeyError,
	queueError:      status.KeyError,
}

// handle is the typed continuation for one queued request. It is private to
// this package; everything outside sees only the encoded opaque string.
type handle struct {
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

func encodeHandle(h handle) (string, error) {
	raw, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("fal: encode handle: %w", err)
	}
	return string(raw), nil
}

func decodeHandle(s string) (handle, error) {
	var h handle
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return handle{}, fmt.Errorf("fal: decode handle: %w", err)
	}
	if h.StatusURL == "" || h.ResponseURL == "" {
		return handle{}, fmt.Errorf("fal: handle missing sub-resources")
	}
	return h, nil
}

// Plugin exposes fal.ai as a pull-mode provider.
type Plugin struct {
	cfg    infra.ProviderConfig
	client *Client
}

// New wires a plugin with its configured client. The client is constructed
// once at registration time behind the Configured gate.
func New(cfg infra.ProviderConfig, client *Client) *Plugin {
	return &Plugin{cfg: cfg, client: client}
}

func (p *Plugin) ID() string   { return providerID }
func (p *Plugin) Name() string { return "fal.ai" }

// TransportURL is always empty: fal tasks are tracked by polling.
func (p *Plugin) TransportURL() string { return "" }

func (p *Plugin) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != "" && p.cfg.HasModels()
}

func (p *Plugin) Enabled() bool {
	return !p.cfg.Disabled && p.Configured()
}

func (p *Plugin) Models() []provider.Model {
	if !p.Configured() {
		return nil
	}
	var models []provider.Model
	for _, id := range p.cfg.ImageModels {
		models = append(models, provider.Model{ID: id, Name: id, Media: provider.MediaImage})
	}
	for _, id := range p.cfg.VideoModels {
		models = append(models, provider.Model{ID: id, Name: id, Media: provider.MediaVideo})
	}
	for _, id := range p.cfg.AudioModels {
		models = append(models, provider.Model{ID: id, Name: id, Media: provider.MediaAudio})
	}
	return models
}

// Start submits one generation request to the queue and returns the
// continuation task. The payload mapping per media type is private to this
// adapter.
func (p *Plugin) Start(ctx context.Context, req provider.Request) (provider.Task, error) {
	sub, err := p.client.Submit(ctx, req.ModelID, buildPayload(req))
	if err != nil {
		return provider.Task{}, err
	}
	encoded, err := encodeHandle(handle{StatusURL: sub.StatusURL, ResponseURL: sub.ResponseURL})
	if err != nil {
		return provider.Task{}, err
	}
	return provider.Task{ID: sub.RequestID, Handle: encoded}, nil
}

// CheckStatus performs exactly one status request and, only when the queue
// reports completion, one result fetch to extract output locations.
func (p *Plugin) CheckStatus(ctx context.Context, encoded string) (status.Update, error) {
	h, err := decodeHandle(encoded)
	if err != nil {
		return status.Update{}, err
	}
	st, err := p.client.Status(ctx, h.StatusURL)
	if err != nil {
		return status.Update{}, err
	}
	key, ok := statusTable[st.Status]
	if !ok {
		key = status.KeyGenerating
	}
	update := status.Update{
		Status:        key,
		QueuePosition: st.QueuePosition,
		OutputURLs:    []string{},
	}
	switch key {
	case status.KeyQueued:
		update.Percent = percentQueued
	case status.KeyComplete:
		update.Percent = percentComplete
		result, err := p.client.Result(ctx, h.ResponseURL)
		if err != nil {
			return status.Update{}, err
		}
		update.OutputURLs = extractOutputs(result)
	case status.KeyError, status.KeyErrorProcessing:
		update.ErrorMessage = st.Error
		if update.ErrorMessage == "" {
			update.ErrorMessage = "provider reported failure"
		}
	default:
		update.Percent = percentInProgress
	}
	return update, nil
}

// resultEnvelope covers the output shapes the queue returns across media
// types: an array of images, a single image/video/audio object, or a bare
// top-level url.
type resultEnvelope struct {
	Images    []outputRef `json:"images"`
	Image     *outputRef  `json:"image"`
	Video     *outputRef  `json:"video"`
	Audio     *outputRef  `json:"audio"`
	AudioFile *outputRef  `json:"audio_file"`
	URL       string      `json:"url"`
}

type outputRef struct {
	URL string `json:"url"`
}

// extractOutputs pulls output URLs out of a completed result payload. A
// completed result with no recognizable output field yields an empty list,
// never an error; the caller decides whether to treat that as a failure.
func extractOutputs(raw json.RawMessage) []string {
	var env resultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return []string{}
	}
	urls := []string{}
	for _, img := range env.Images {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	for _, ref := range []*outputRef{env.Image, env.Video, env.Audio, env.AudioFile} {
		if ref != nil && ref.URL != "" {
			urls = append(urls, ref.URL)
		}
	}
	if len(urls) == 0 && env.URL != "" {
		urls = append(urls, env.URL)
	}
	return urls
}

// buildPayload maps the generic request onto the queue's wire format.
func buildPayload(req provider.Request) map[string]any {
	payload := map[string]any{"prompt": req.Prompt}
	switch req.Media {
	case provider.MediaVideo:
		resolution := req.Resolution
		if resolution == "" {
			resolution = "720p"
		}
		payload["resolution"] = resolution
		payload["generate_audio"] = true
		if req.InputImageURL != "" {
			payload["image_url"] = req.InputImageURL
		}
	case provider.MediaAudio:
		// The queue requires an explicit duration for audio models.
		payload["duration_seconds"] = 30
	default:
		payload["image_size"] = imageSize(req.AspectRatio)
		if req.InputImageURL != "" {
			payload["image_url"] = req.InputImageURL
		}
	}
	return payload
}

// imageSize maps caller aspect ratios onto the queue's named size presets.
func imageSize(aspect string) string {
	switch aspect {
	case "16:9":
		return "landscape_16_9"
	case "9:16":
		return "portrait_16_9"
	case "4:3":
		return "landscape_4_3"
	case "3:4":
		return "portrait_4_3"
	default:
		return "square_hd"
	}
}

var (
	_ provider.Plugin     = (*Plugin)(nil)
	_ provider.PullPlugin = (*Plugin)(nil)
)
