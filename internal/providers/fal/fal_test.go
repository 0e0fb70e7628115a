package fal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"mediagen/internal/infra"
	"mediagen/internal/provider"
	"mediagen/internal/status"
)

func testConfig(baseURL string) infra.ProviderConfig {
	return infra.ProviderConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		ImageModels: []string{"flux/dev"},
		VideoModels: []string{"veo3"},
	}
}

func newTestPlugin(t *testing.T, handler http.Handler) (*Plugin, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testConfig(srv.URL)
	return New(cfg, NewClient(Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})), srv
}

func TestStatusTableIsTotal(t *testing.T) {
	known := []string{queueInQueue, queueInProgress, queueCompleted, queueFailed, queueError}
	for _, s := range known {
		if _, ok := statusTable[s]; !ok {
			t.Fatalf("queue status %q has no canonical mapping", s)
		}
	}
}

func TestUnconfiguredPluginHasNoModels(t *testing.T) {
	p := New(infra.ProviderConfig{}, NewClient(Options{}))
	if p.Configured() {
		t.Fatalf("plugin without key must not be configured")
	}
	if models := p.Models(); models != nil {
		t.Fatalf("unconfigured plugin returned models: %v", models)
	}
}

func TestModelsTaggedWithMediaType(t *testing.T) {
	p := New(testConfig("http://example"), NewClient(Options{APIKey: "k"}))
	models := p.Models()
	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	if models[0].Media != provider.MediaImage || models[1].Media != provider.MediaVideo {
		t.Fatalf("unexpected media tagging: %+v", models)
	}
}

func TestStartReturnsOpaqueHandle(t *testing.T) {
	var gotPath, gotAuth string
	p, _ := newTestPlugin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"request_id":   "req-1",
			"status_url":   "http://q/status",
			"response_url": "http://q/response",
		})
	}))

	task, err := p.Start(context.Background(), provider.Request{
		Prompt: "a cat", ModelID: "flux/dev", Media: provider.MediaImage,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "req-1" {
		t.Fatalf("task id = %q", task.ID)
	}
	if gotPath != "/flux/dev" {
		t.Fatalf("submit path = %q", gotPath)
	}
	if gotAuth != "Key test-key" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	h, err := decodeHandle(task.Handle)
	if err != nil {
		t.Fatalf("handle must round-trip: %v", err)
	}
	if h.StatusURL != "http://q/status" || h.ResponseURL != "http://q/response" {
		t.Fatalf("handle sub-resources: %+v", h)
	}
}

func TestStartSubmissionRejected(t *testing.T) {
	p, _ := newTestPlugin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"msg":"prompt too long"}]}`))
	}))

	_, err := p.Start(context.Background(), provider.Request{ModelID: "flux/dev", Media: provider.MediaImage})
	var rejected *provider.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Reason != "prompt too long" {
		t.Fatalf("reason = %q", rejected.Reason)
	}
}

func TestStartTransportErrorCarriesStatusAndBody(t *testing.T) {
	p, _ := newTestPlugin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))

	_, err := p.Start(context.Background(), provider.Request{ModelID: "flux/dev", Media: provider.MediaImage})
	var transport *provider.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if transport.StatusCode != http.StatusBadGateway || transport.Body != "upstream down" {
		t.Fatalf("transport error detail: %+v", transport)
	}
}

func TestCheckStatusSequenceToCompletion(t *testing.T) {
	// IN_QUEUE -> IN_PROGRESS -> COMPLETED, then one result fetch.
	var statusCalls, resultCalls int
	statuses := []string{"IN_QUEUE", "IN_PROGRESS", "COMPLETED"}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		st := statuses[statusCalls]
		statusCalls++
		resp := map[string]any{"status": st}
		if st == "IN_QUEUE" {
			resp["queue_position"] = 2
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/result", func(w http.ResponseWriter, r *http.Request) {
		resultCalls++
		_, _ = w.Write([]byte(`{"video":{"url":"v"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	p := New(cfg, NewClient(Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}))
	handleStr, err := encodeHandle(handle{StatusURL: srv.URL + "/status", ResponseURL: srv.URL + "/result"})
	if err != nil {
		t.Fatalf("encode handle: %v", err)
	}

	u1, err := p.CheckStatus(context.Background(), handleStr)
	if err != nil {
		t.Fatalf("poll 1: %v", err)
	}
	if u1.Status != status.KeyQueued || u1.QueuePosition == nil || *u1.QueuePosition != 2 {
		t.Fatalf("poll 1 = %+v", u1)
	}
	if resultCalls != 0 {
		t.Fatalf("result fetched before completion")
	}

	u2, err := p.CheckStatus(context.Background(), handleStr)
	if err != nil {
		t.Fatalf("poll 2: %v", err)
	}
	if u2.Status != status.KeyGenerating || u2.Percent != percentInProgress {
		t.Fatalf("poll 2 = %+v", u2)
	}

	u3, err := p.CheckStatus(context.Background(), handleStr)
	if err != nil {
		t.Fatalf("poll 3: %v", err)
	}
	if u3.Status != status.KeyComplete || u3.Percent != 100 {
		t.Fatalf("poll 3 = %+v", u3)
	}
	if len(u3.OutputURLs) != 1 || u3.OutputURLs[0] != "v" {
		t.Fatalf("outputs = %v, want [v]", u3.OutputURLs)
	}
	if statusCalls != 3 || resultCalls != 1 {
		t.Fatalf("calls: status=%d result=%d", statusCalls, resultCalls)
	}
}

func TestCheckStatusUnknownStatusDefaultsToGenerating(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"WARMING_UP"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	p := New(cfg, NewClient(Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}))
	handleStr, _ := encodeHandle(handle{StatusURL: srv.URL + "/status", ResponseURL: srv.URL + "/result"})

	u, err := p.CheckStatus(context.Background(), handleStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Status != status.KeyGenerating {
		t.Fatalf("unknown status mapped to %q, want generating", u.Status)
	}
}

func TestCheckStatusFailedCarriesMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"FAILED","error":"nsfw filter"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	p := New(cfg, NewClient(Options{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}))
	handleStr, _ := encodeHandle(handle{StatusURL: srv.URL + "/status", ResponseURL: srv.URL + "/result"})

	u, err := p.CheckStatus(context.Background(), handleStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Status != status.KeyError || u.ErrorMessage != "nsfw filter" {
		t.Fatalf("failed status = %+v", u)
	}
}

func TestExtractOutputsShapes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{"image array", `{"images":[{"url":"a"},{"url":"b"}]}`, []string{"a", "b"}},
		{"single image", `{"image":{"url":"i"}}`, []string{"i"}},
		{"video object", `{"video":{"url":"v"}}`, []string{"v"}},
		{"audio object", `{"audio":{"url":"s"}}`, []string{"s"}},
		{"audio file field", `{"audio_file":{"url":"f"}}`, []string{"f"}},
		{"bare url", `{"url":"top"}`, []string{"top"}},
		{"empty object", `{}`, []string{}},
		{"unrecognized shape", `{"payload":{"data":"x"}}`, []string{}},
		{"not json", `garbage`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractOutputs(json.RawMessage(tc.raw))
			if got == nil {
				t.Fatalf("extractOutputs must never return nil")
			}
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildPayloadPerMediaType(t *testing.T) {
	img := buildPayload(provider.Request{Prompt: "p", Media: provider.MediaImage, AspectRatio: "16:9"})
	if img["image_size"] != "landscape_16_9" {
		t.Fatalf("image payload = %v", img)
	}

	vid := buildPayload(provider.Request{Prompt: "p", Media: provider.MediaVideo, InputImageURL: "http://img"})
	if vid["resolution"] != "720p" || vid["image_url"] != "http://img" {
		t.Fatalf("video payload = %v", vid)
	}
	if vid["generate_audio"] != true {
		t.Fatalf("video payload missing audio flag: %v", vid)
	}

	aud := buildPayload(provider.Request{Prompt: "p", Media: provider.MediaAudio})
	if aud["duration_seconds"] != 30 {
		t.Fatalf("audio payload = %v", aud)
	}
}

func TestDecodeHandleRejectsForeignStrings(t *testing.T) {
	if _, err := decodeHandle("not-a-handle"); err == nil {
		t.Fatalf("expected decode failure")
	}
	if _, err := decodeHandle(`{"status_url":"only"}`); err == nil {
		t.Fatalf("expected failure for missing sub-resource")
	}
}
