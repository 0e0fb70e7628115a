// Package status defines the canonical lifecycle vocabulary every provider
// backend is normalized into. UI and observability code binds to these keys;
// provider-specific status strings never leak past the adapter boundary.
package status

// Key identifies a canonical lifecycle stage.
type Key string

const (
	KeyConnecting       Key = "connecting"
	KeyConnected        Key = "connected"
	KeyQueued           Key = "queued"
	KeyAccepted         Key = "accepted"
	KeyPreprocessStart  Key = "preprocessStart"
	KeyPreprocessEnd    Key = "preprocessEnd"
	KeyGPUAssigned      Key = "gpuAssigned"
	KeyStarted          Key = "started"
	KeyGenerating       Key = "generating"
	KeyProcessingOutput Key = "processingOutput"
	KeyEnding           Key = "ending"
	KeyPostprocessStart Key = "postprocessStart"
	KeyPostprocessEnd   Key = "postprocessEnd"
	KeyComplete         Key = "complete"
	KeyError            Key = "error"
	KeyErrorProcessing  Key = "errorProcessing"
)

// Terminal reports whether no further updates are valid after this key.
func (k Key) Terminal() bool {
	switch k {
	case KeyComplete, KeyError, KeyErrorProcessing:
		return true
	default:
		return false
	}
}

// Update is one canonical progress record. Percent is clamped to [0,100] and
// guaranteed non-decreasing within a single task by the tracker emitting it.
// QueuePosition is best-effort and may fluctuate; nil means unknown.
type Update struct {
	Status        Key      `json:"status"`
	Percent       float64  `json:"percent"`
	QueuePosition *int     `json:"queue_position,omitempty"`
	OutputURLs    []string `json:"output_urls"`
	ErrorMessage  string   `json:"error_message,omitempty"`
}

// Terminal reports whether the update closes the task's lifecycle.
func (u Update) Terminal() bool {
	return u.Status.Terminal()
}
