package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestSubmitReturnsJobHandle(t *testing.T) {
	var received JobRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/download" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "abc123"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	id, err := client.Submit(context.Background(), JobRequest{
		URL:     "https://x/video",
		Format:  "mp4",
		Quality: "best",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected handle abc123, got %q", id)
	}
	if received.URL != "https://x/video" || received.Format != "mp4" || received.Quality != "best" {
		t.Fatalf("unexpected submission payload: %+v", received)
	}
}

func TestSubmitSurfacesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "No URL provided"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Submit(context.Background(), JobRequest{}); err == nil || err.Error() != "No URL provided" {
		t.Fatalf("expected server error message, got %v", err)
	}
}

func TestSubmitFallsBackToStatusOnOpaqueBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Submit(context.Background(), JobRequest{}); err == nil || err.Error() != "server returned status 502" {
		t.Fatalf("expected status fallback, got %v", err)
	}
}

func TestFetchInfoPlaylist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/info" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Info{
			Type:  "playlist",
			Title: "Mix",
			Count: 2,
			Entries: []PlaylistEntry{
				{Title: "One", URL: "https://x/1"},
				{Title: "Two", URL: "https://x/2"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	info, err := client.FetchInfo(context.Background(), "https://x/playlist")
	if err != nil {
		t.Fatalf("fetch info: %v", err)
	}
	if !info.IsPlaylist() || len(info.Entries) != 2 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestSubscribeDecodesEventStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/progress/abc123" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": keepalive\n\n"))
		_, _ = w.Write([]byte("data: {\"status\":\"downloading\",\"progress\":40}\n\n"))
		_, _ = w.Write([]byte("data: {\"status\":\"processing\",\"detail\":\"Re-encoding\",\"pp_step\":1}\n\n"))
		_, _ = w.Write([]byte("data: {\"status\":\"done\",\"progress\":100,\"pp_step\":1}\n\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	stream, err := client.Subscribe(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer stream.Close()

	ctx := context.Background()

	first, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(first.Status) != "downloading" || first.Progress == nil || *first.Progress != 40 {
		t.Fatalf("unexpected first event: %+v", first)
	}

	second, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(second.Status) != "processing" || second.Progress != nil || second.PPStep != 1 {
		t.Fatalf("unexpected second event: %+v", second)
	}

	third, err := stream.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if string(third.Status) != "done" {
		t.Fatalf("unexpected third event: %+v", third)
	}
}

func TestSubscribeRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unknown download"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if _, err := client.Subscribe(context.Background(), "missing"); err == nil || err.Error() != "Unknown download" {
		t.Fatalf("expected subscribe rejection, got %v", err)
	}
}

func TestSaveFileUsesContentDisposition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/file/abc123" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="My Track.mp3"`)
		_, _ = w.Write([]byte("audio-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	client := NewClient(server.URL)
	path, err := client.SaveFile(context.Background(), "abc123", dir)
	if err != nil {
		t.Fatalf("save file: %v", err)
	}
	if filepath.Base(path) != "My Track.mp3" {
		t.Fatalf("unexpected filename: %q", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(content) != "audio-bytes" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestBatchZipPostsAllHandles(t *testing.T) {
	var received struct {
		IDs []string `json:"ids"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/batch-zip" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode zip request: %v", err)
		}
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "downloads.zip")
	client := NewClient(server.URL)
	if err := client.BatchZip(context.Background(), []string{"a", "b", "c"}, dest); err != nil {
		t.Fatalf("batch zip: %v", err)
	}
	if len(received.IDs) != 3 || received.IDs[0] != "a" || received.IDs[2] != "c" {
		t.Fatalf("unexpected ids: %v", received.IDs)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected archive written: %v", err)
	}
}

func TestCancelAcceptsNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cancel/abc123" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	if err := client.Cancel(context.Background(), "abc123"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
}

func TestHealthReportsUnreachableServer(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	if err := client.Health(context.Background()); err == nil {
		t.Fatalf("expected health check failure")
	}
}
