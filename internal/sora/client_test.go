package sora_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/sora"
	"reel/internal/testsupport"
)

func newClient(t *testing.T, serverURL string) *sora.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSoraBaseURL(serverURL))
	cfg.Sora.CallbackURL = "https://callback.test.invalid/hook"
	return sora.NewClient(cfg, logging.NewNop())
}

func TestSubmitJobSendsFullBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/submit" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.SubmitJob(context.Background(), sora.SubmitRequest{
		JobID:           "job-123",
		Prompt:          "a corgi surfing",
		AspectRatio:     "landscape",
		StartImage:      "aW1hZ2U=",
		DurationSeconds: 10,
	})
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}

	want := map[string]any{
		"jobId":         "job-123",
		"prompt":        "a corgi surfing",
		"videoCategory": "sora2",
		"aspectRatio":   "landscape",
		"startImage":    "aW1hZ2U=",
		"duration":      float64(10),
		"callbackUrl":   "https://callback.test.invalid/hook",
	}
	for key, value := range want {
		if received[key] != value {
			t.Errorf("body field %s: got %v want %v", key, received[key], value)
		}
	}
}

func TestSubmitJobTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	err := client.SubmitJob(context.Background(), sora.SubmitRequest{JobID: "job-1", Prompt: "p"})
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	client := newClient(t, "http://unused.test.invalid")
	if err := client.SubmitJob(context.Background(), sora.SubmitRequest{Prompt: "p"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing job id should fail validation, got %v", err)
	}
	if err := client.SubmitJob(context.Background(), sora.SubmitRequest{JobID: "j"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing prompt should fail validation, got %v", err)
	}
}

func TestJobStatusParsesOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		payload  string
		want     sora.StatusResult
		terminal bool
	}{
		{
			name:     "success",
			payload:  `{"urlVideo":"https://cdn.example/video.mp4"}`,
			want:     sora.StatusResult{VideoURL: "https://cdn.example/video.mp4"},
			terminal: true,
		},
		{
			name:     "legacy success alias",
			payload:  `{"URL VIDEO":"https://cdn.example/legacy.mp4"}`,
			want:     sora.StatusResult{VideoURL: "https://cdn.example/legacy.mp4"},
			terminal: true,
		},
		{
			name:     "canonical wins over alias",
			payload:  `{"urlVideo":"https://cdn.example/new.mp4","URL VIDEO":"https://cdn.example/old.mp4"}`,
			want:     sora.StatusResult{VideoURL: "https://cdn.example/new.mp4"},
			terminal: true,
		},
		{
			name:     "failure",
			payload:  `{"errorMessage":"content policy"}`,
			want:     sora.StatusResult{ErrorMessage: "content policy"},
			terminal: true,
		},
		{
			name:     "legacy failure alias",
			payload:  `{"ERROR":"render failed"}`,
			want:     sora.StatusResult{ErrorMessage: "render failed"},
			terminal: true,
		},
		{
			name:     "not ready",
			payload:  `{"progress":42}`,
			want:     sora.StatusResult{},
			terminal: false,
		},
		{
			name:     "empty body",
			payload:  ``,
			want:     sora.StatusResult{},
			terminal: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/status" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				var body map[string]string
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("decode body: %v", err)
				}
				if body["jobId"] != "job-9" {
					t.Errorf("unexpected jobId: %q", body["jobId"])
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.payload))
			}))
			defer server.Close()

			client := newClient(t, server.URL)
			result, err := client.JobStatus(context.Background(), "job-9")
			if err != nil {
				t.Fatalf("JobStatus failed: %v", err)
			}
			if result != tc.want {
				t.Fatalf("unexpected result: got %+v want %+v", result, tc.want)
			}
			if result.Terminal() != tc.terminal {
				t.Fatalf("Terminal() = %v, want %v", result.Terminal(), tc.terminal)
			}
		})
	}
}

func TestJobStatusTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newClient(t, server.URL)
	if _, err := client.JobStatus(context.Background(), "job-9"); !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
