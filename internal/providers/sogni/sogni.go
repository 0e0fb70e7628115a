package sogni

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mediagen/internal/infra"
	"mediagen/internal/provider"
	"mediagen/internal/status"
)

const providerID = "sogni"

// Wire event types the socket can deliver.
const (
	eventQueued           = "queued"
	eventAccepted         = "accepted"
	eventPreprocessStart  = "preprocess_start"
	eventPreprocessEnd    = "preprocess_end"
	eventGPUAssigned      = "gpu_assigned"
	eventJobStarted       = "job_started"
	eventJobProgress      = "job_progress"
	eventJobOutput        = "job_output"
	eventJobError         = "job_error"
	eventPostprocessStart = "postprocess_start"
	eventPostprocessEnd   = "postprocess_end"
	eventJobEnded         = "job_ended"
)

// eventTable maps every known socket event type to a canonical key. Unknown
// event types are ignored by HandleFrame for forward compatibility with
// provider additions.
var eventTable = map[string]status.Key{
	eventQueued:           status.KeyQueued,
	eventAccepted:         status.KeyAccepted,
	eventPreprocessStart:  status.KeyPreprocessStart,
	eventPreprocessEnd:    status.KeyPreprocessEnd,
	eventGPUAssigned:      status.KeyGPUAssigned,
	eventJobStarted:       status.KeyStarted,
	eventJobProgress:      status.KeyGenerating,
	eventJobOutput:        status.KeyProcessingOutput,
	eventJobError:         status.KeyError,
	eventPostprocessStart: status.KeyPostprocessStart,
	eventPostprocessEnd:   status.KeyComplete,
	eventJobEnded:         status.KeyEnding,
}

// stagePercent fixes the percent reached at each lifecycle stage. These are
// UX tuning constants; recalibrating them does not affect correctness.
var stagePercent = map[string]float64{
	eventQueued:           5,
	eventAccepted:         10,
	eventPreprocessStart:  15,
	eventPreprocessEnd:    25,
	eventGPUAssigned:      35,
	eventJobStarted:       45,
	eventJobOutput:        90,
	eventPostprocessStart: 94,
	eventPostprocessEnd:   100,
}

// generatingFloor/Span scale the in-flight progress fraction into the band
// between job start and output processing.
const (
	generatingFloor = 45
	generatingSpan  = 45
)

// frame is the socket wire format for one job event.
type frame struct {
	Type          string   `json:"type"`
	ProjectID     string   `json:"project_id"`
	Progress      *float64 `json:"progress,omitempty"`
	QueuePosition *int     `json:"queue_position,omitempty"`
	URL           string   `json:"url,omitempty"`
	URLs          []string `json:"urls,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// initFrame is the subscribe message sent after the socket opens.
type initFrame struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	Token     string `json:"token"`
}

// Plugin exposes Sogni as a push-mode provider.
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
func (p *Plugin) Name() string { return "Sogni" }

// TransportURL returns the socket endpoint progress events arrive on.
func (p *Plugin) TransportURL() string { return p.cfg.SocketURL }

func (p *Plugin) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != "" && p.cfg.HasModels() && p.cfg.SocketURL != ""
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

// Start creates one project and returns its continuation. The push handle is
// the project id itself; the socket subscribe frame re-derives everything
// else from plugin configuration.
func (p *Plugin) Start(ctx context.Context, req provider.Request) (provider.Task, error) {
	projectID, err := p.client.CreateProject(ctx, buildPayload(req))
	if err != nil {
		return provider.Task{}, err
	}
	return provider.Task{ID: projectID, Handle: projectID}, nil
}

// InitFrame builds the subscribe message for the given continuation handle.
func (p *Plugin) InitFrame(handle string) ([]byte, error) {
	if strings.TrimSpace(handle) == "" {
		return nil, fmt.Errorf("sogni: empty continuation handle")
	}
	return json.Marshal(initFrame{Type: "subscribe", ProjectID: handle, Token: p.cfg.APIKey})
}

// HandleFrame decodes one socket frame and drives the sink. Unknown event
// types fire no callback; a malformed frame returns an error for the tracker
// to log and drop.
func (p *Plugin) HandleFrame(data []byte, sink provider.EventSink) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("sogni: decode frame: %w", err)
	}
	key, known := eventTable[f.Type]
	if !known {
		return nil
	}

	switch f.Type {
	case eventJobError:
		msg := f.Error
		if msg == "" {
			msg = "provider reported job failure"
		}
		// No cleanup here: the provider may still deliver output or end
		// frames after a mid-stream error.
		sink.Fail(msg)
		return nil
	case eventJobOutput:
		sink.SetStatus(key)
		sink.SetProgress(stagePercent[f.Type])
		sink.Outputs(outputURLs(f))
		return nil
	case eventJobProgress:
		sink.SetStatus(key)
		if f.Progress != nil {
			sink.SetProgress(generatingFloor + clampFraction(*f.Progress)*generatingSpan)
		} else {
			sink.AddProgress(1)
		}
		return nil
	case eventPostprocessEnd:
		sink.SetStatus(key)
		sink.SetProgress(stagePercent[f.Type])
		sink.Cleanup()
		return nil
	case eventJobEnded:
		sink.SetStatus(key)
		sink.Cleanup()
		return nil
	}

	sink.SetStatus(key)
	if pct, ok := stagePercent[f.Type]; ok {
		sink.SetProgress(pct)
	}
	if f.QueuePosition != nil {
		sink.SetQueuePosition(*f.QueuePosition)
	}
	return nil
}

func outputURLs(f frame) []string {
	if len(f.URLs) > 0 {
		return f.URLs
	}
	if f.URL != "" {
		return []string{f.URL}
	}
	return nil
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// buildPayload maps the generic request onto the project API wire format.
func buildPayload(req provider.Request) map[string]any {
	payload := map[string]any{
		"prompt": req.Prompt,
		"model":  req.ModelID,
	}
	switch req.Media {
	case provider.MediaVideo:
		resolution := req.Resolution
		if resolution == "" {
			resolution = "720p"
		}
		payload["resolution"] = resolution
		payload["audio"] = true
		if req.InputImageURL != "" {
			payload["start_image_url"] = req.InputImageURL
		}
	case provider.MediaAudio:
		payload["duration_seconds"] = 30
	default:
		width, height := dimensions(req.AspectRatio)
		payload["width"] = width
		payload["height"] = height
		if req.InputImageURL != "" {
			payload["start_image_url"] = req.InputImageURL
		}
	}
	return payload
}

// dimensions maps caller aspect ratios onto concrete render sizes.
func dimensions(aspect string) (int, int) {
	switch aspect {
	case "16:9":
		return 1280, 720
	case "9:16":
		return 720, 1280
	case "4:3":
		return 1024, 768
	case "3:4":
		return 768, 1024
	default:
		return 1024, 1024
	}
}

var (
	_ provider.Plugin     = (*Plugin)(nil)
	_ provider.PushPlugin = (*Plugin)(nil)
)
