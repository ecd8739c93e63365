// Package httpapi is the HTTP client for the consumed report operations:
// multipart create-report and fetch-reports.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"fieldreport/internal/artifact"
	"fieldreport/internal/report"
)

const defaultTimeout = 60 * time.Second

// APIError is a structured failure from the backend, with a human-readable
// message suitable for direct display.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("httpapi: server returned %d: %s", e.Status, e.Message)
}

// Client talks to the report backend.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("httpapi: base URL is required")
	}
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: baseURL, http: hc}, nil
}

// Create submits the report as one multipart payload: scalar fields, a
// JSON-encoded coordinate, then 0-5 image parts and 0-2 video parts.
// Returns the created record id.
func (c *Client) Create(ctx context.Context, sub report.Submission) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	coord, err := json.Marshal(sub.Coordinate)
	if err != nil {
		return "", fmt.Errorf("httpapi: encode coordinate: %w", err)
	}
	fields := map[string]string{
		"formType":   sub.FormType,
		"notes":      sub.Notes,
		"moodNotes":  sub.MoodNotes,
		"date":       sub.Date,
		"coordinate": string(coord),
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return "", fmt.Errorf("httpapi: write field %s: %w", name, err)
		}
	}

	for _, a := range sub.Artifacts {
		field := "images"
		if a.Kind == artifact.KindVideo {
			field = "videos"
		}
		part, err := mw.CreatePart(partHeader(field, a.Name, a.MIME))
		if err != nil {
			return "", fmt.Errorf("httpapi: create part for %s: %w", a.Name, err)
		}
		if _, err := part.Write(a.Data); err != nil {
			return "", fmt.Errorf("httpapi: write part for %s: %w", a.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("httpapi: finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/reports", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("httpapi: create report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", decodeError(resp)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("httpapi: decode create response: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", fmt.Errorf("httpapi: server response carried no id")
	}
	return out.ID, nil
}

// List fetches every report record in server order.
func (c *Client) List(ctx context.Context) ([]report.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/reports", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpapi: fetch reports: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out []report.Report
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("httpapi: decode report list: %w", err)
	}
	return out, nil
}

func partHeader(field, filename, mime string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", mime)
	return h
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(data) > 0 {
		var wire struct {
			Error   *APIError `json:"error"`
			Message string    `json:"message"`
		}
		if jsonErr := json.Unmarshal(data, &wire); jsonErr == nil {
			switch {
			case wire.Error != nil && wire.Error.Message != "":
				apiErr.Message = wire.Error.Message
			case wire.Message != "":
				apiErr.Message = wire.Message
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
