package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jaa/batchdl/internal/fileops"
	"github.com/jaa/batchdl/internal/progress"
)

// Client talks to the local conversion server. All methods take a context;
// the underlying http.Client carries no global timeout because progress
// subscriptions stay open for the lifetime of a job.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{},
	}
}

type Metadata struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

func (m Metadata) Empty() bool {
	return m.Title == "" && m.Artist == "" && m.Album == ""
}

// JobRequest is the submission payload for one download. Immutable once
// submitted.
type JobRequest struct {
	URL       string   `json:"url"`
	Format    string   `json:"format"`
	Quality   string   `json:"quality"`
	Metadata  Metadata `json:"metadata"`
	Subtitles bool     `json:"subtitles,omitempty"`
}

type PlaylistEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

type Info struct {
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Uploader  string          `json:"uploader"`
	Duration  int             `json:"duration"`
	Thumbnail string          `json:"thumbnail"`
	URL       string          `json:"url"`
	Count     int             `json:"count"`
	Entries   []PlaylistEntry `json:"entries"`
}

func (i Info) IsPlaylist() bool {
	return i.Type == "playlist"
}

// Submit starts a server-side download job and returns its opaque handle.
func (c *Client) Submit(ctx context.Context, req JobRequest) (string, error) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := c.postJSON(ctx, "/api/download", req, &payload); err != nil {
		return "", err
	}
	if payload.ID == "" {
		return "", fmt.Errorf("server returned no job id")
	}
	return payload.ID, nil
}

// FetchInfo resolves a URL into a single video or a playlist listing.
func (c *Client) FetchInfo(ctx context.Context, url string) (Info, error) {
	var info Info
	body := struct {
		URL string `json:"url"`
	}{URL: url}
	if err := c.postJSON(ctx, "/api/info", body, &info); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Subscribe opens the progress stream for a job handle. The caller owns the
// returned stream and must close it.
func (c *Client) Subscribe(ctx context.Context, jobID string) (progress.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/progress/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("build progress request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open progress stream for %s: %w", jobID, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return newSSEStream(resp.Body), nil
}

// FileURL is the stable retrieval address for a finished job's artifact.
func (c *Client) FileURL(jobID string) string {
	return c.BaseURL + "/api/file/" + jobID
}

// SaveFile downloads a finished job's artifact into dir, using the server's
// Content-Disposition filename when present. Returns the written path.
func (c *Client) SaveFile(ctx context.Context, jobID string, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(jobID), nil)
	if err != nil {
		return "", fmt.Errorf("build file request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("retrieve file for %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	name := dispositionFilename(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = jobID
	}
	target := filepath.Join(dir, filepath.Base(name))

	err = fileops.WriteAtomic(target, func(w io.Writer) error {
		if _, copyErr := io.Copy(w, resp.Body); copyErr != nil {
			return fmt.Errorf("write artifact: %w", copyErr)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// BatchZip packages the given job handles into one archive written to dest.
func (c *Client) BatchZip(ctx context.Context, jobIDs []string, dest string) error {
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: jobIDs}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode zip request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/batch-zip", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build zip request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	return fileops.WriteAtomic(dest, func(w io.Writer) error {
		if _, copyErr := io.Copy(w, resp.Body); copyErr != nil {
			return fmt.Errorf("write archive: %w", copyErr)
		}
		return nil
	})
}

// Cancel asks the server to stop a job. Best effort; the progress stream
// still decides the job's terminal outcome.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/cancel/"+jobID, nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return decodeError(resp)
	}
	return nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/config", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("reach server at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server at %s returned status %d", c.BaseURL, resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// decodeError maps the server's {error: string} payload to a Go error,
// falling back to the HTTP status when the body is not the known shape.
func decodeError(resp *http.Response) error {
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil {
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &body) == nil && strings.TrimSpace(body.Error) != "" {
			return fmt.Errorf("%s", body.Error)
		}
	}
	return fmt.Errorf("server returned status %d", resp.StatusCode)
}

func dispositionFilename(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
