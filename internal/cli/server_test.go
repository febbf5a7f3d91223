package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeServer imitates the download server's HTTP surface with immediate
// job completion. Each submitted URL gets a deterministic job id.
type fakeServer struct {
	*httptest.Server

	mu          sync.Mutex
	submissions []string
	failFiles   bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fake := &fakeServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/download", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
			return
		}
		fake.mu.Lock()
		fake.submissions = append(fake.submissions, payload.URL)
		id := fmt.Sprintf("job-%d", len(fake.submissions))
		fake.mu.Unlock()

		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})
	mux.HandleFunc("/api/progress/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"status\": \"starting\"}\n\n")
		fmt.Fprint(w, "data: {\"status\": \"downloading\", \"progress\": 50.0}\n\n")
		fmt.Fprint(w, "data: {\"status\": \"done\", \"progress\": 100.0}\n\n")
	})
	mux.HandleFunc("/api/file/", func(w http.ResponseWriter, r *http.Request) {
		fake.mu.Lock()
		failing := fake.failFiles
		fake.mu.Unlock()
		if failing {
			http.Error(w, `{"error": "file expired"}`, http.StatusInternalServerError)
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/file/")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", jobID+".mp3"))
		fmt.Fprint(w, "audio-bytes")
	})
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			URL string `json:"url"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "video",
			"title": "Test Track",
			"url":   payload.URL,
		})
	})
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"formats": []string{"mp3"}})
	})

	fake.Server = httptest.NewServer(mux)
	t.Cleanup(fake.Server.Close)
	return fake
}

func (f *fakeServer) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submissions...)
}
