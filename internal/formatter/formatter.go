// package formatter renders fetched canvases as JSON, CSV, Markdown or plain text and downloads canvas videos
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/spotcanvas/internal/canvas"
	"github.com/desertthunder/spotcanvas/internal/shared"
)

// Formats accepted by [Format].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// ToJSON renders canvases as a JSON array
func ToJSON(canvases []canvas.Canvas, pretty bool) ([]byte, error) {
	if canvases == nil {
		canvases = []canvas.Canvas{}
	}
	return shared.MarshalJSON(canvases, pretty)
}

// ToCSV renders canvases with columns: TrackURI, MP4URL, CanvasURI
func ToCSV(canvases []canvas.Canvas) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"TrackURI", "MP4URL", "CanvasURI"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range canvases {
		record := []string{c.TrackURI, c.MP4URL, canvasURI(c)}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMarkdown renders canvases as a Markdown table with links to each video
func ToMarkdown(canvases []canvas.Canvas) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Canvases\n\n")
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(canvases)))

	if len(canvases) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | Track | Canvas | Video |\n")
	buf.WriteString("|---|-------|--------|-------|\n")
	for i, c := range canvases {
		uri := canvasURI(c)
		if uri == "" {
			uri = "-"
		}
		buf.WriteString(fmt.Sprintf("| %d | `%s` | `%s` | [mp4](%s) |\n", i+1, c.TrackURI, uri, c.MP4URL))
	}

	return buf.Bytes(), nil
}

// ToText renders one "track -> url" line per canvas
func ToText(canvases []canvas.Canvas) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Canvases: %d\n\n", len(canvases)))
	for i, c := range canvases {
		buf.WriteString(fmt.Sprintf("%d. %s -> %s\n", i+1, c.TrackURI, c.MP4URL))
	}

	return buf.Bytes(), nil
}

// Format renders canvases in the named format. JSON output is always indented.
func Format(format string, canvases []canvas.Canvas) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return ToJSON(canvases, true)
	case FormatCSV:
		return ToCSV(canvases)
	case FormatMarkdown, "md":
		return ToMarkdown(canvases)
	case FormatText, "text":
		return ToText(canvases)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want json, csv, markdown or txt)", shared.ErrInvalidFlag, format)
	}
}

// WriteFile renders canvases and writes them to path
func WriteFile(format string, canvases []canvas.Canvas, path string) error {
	data, err := Format(format, canvases)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return nil
}

// DownloadCanvas saves the video at url to path and returns the number of bytes written.
//
// A partially written file is removed on failure. A nil client uses [http.DefaultClient].
func DownloadCanvas(ctx context.Context, client canvas.Doer, url, path string) (int64, error) {
	if url == "" {
		return 0, fmt.Errorf("%w: empty URL provided", shared.ErrDownloadFailed)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", shared.ErrDownloadFailed, resp.StatusCode)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
	}

	return n, nil
}

// DownloadPath resolves where a canvas video is saved. A target ending in ".mp4" is used as is,
// anything else is treated as a directory and the track ID names the file.
func DownloadPath(target string, c canvas.Canvas) string {
	if strings.EqualFold(filepath.Ext(target), ".mp4") {
		return target
	}
	id := c.TrackURI[strings.LastIndex(c.TrackURI, ":")+1:]
	if id == "" {
		id = "canvas"
	}
	return filepath.Join(target, id+".mp4")
}

func canvasURI(c canvas.Canvas) string {
	if c.URI == nil {
		return ""
	}
	return *c.URI
}
