// package formatter exports streamed playlists to JSON, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Export is a playlist with its fully streamed tracks.
type Export struct {
	Playlist   models.Playlist        `json:"playlist"`
	Tracks     []models.PlaylistTrack `json:"tracks"`
	ExportedAt time.Time              `json:"exported_at"`
}

// NewExport stamps playlist and tracks with the current time.
func NewExport(p models.Playlist, tracks []models.PlaylistTrack) *Export {
	if tracks == nil {
		tracks = []models.PlaylistTrack{}
	}
	return &Export{Playlist: p, Tracks: tracks, ExportedAt: time.Now().UTC()}
}

// FormatDuration renders ms as m:ss, or h:mm:ss from one hour.
func FormatDuration(ms int) string {
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// TotalDuration sums the durations of every track.
func (e *Export) TotalDuration() time.Duration {
	var d time.Duration
	for _, pt := range e.Tracks {
		d += pt.Track.Duration()
	}
	return d
}

func ExportToJSON(export *Export) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// ExportToCSV writes one row per track with columns: Position, Title, Artists, Album, Duration, Year, Added, URI, Local
func ExportToCSV(export *Export) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artists", "Album", "Duration", "Year", "Added", "URI", "Local"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, pt := range export.Tracks {
		year := ""
		if pt.Track.Year > 0 {
			year = strconv.Itoa(pt.Track.Year)
		}
		record := []string{
			strconv.Itoa(pt.Index),
			pt.Track.Title,
			strings.Join(pt.Track.Artists, "; "),
			pt.Track.Album,
			FormatDuration(pt.Track.DurationMS),
			year,
			pt.AddedAt,
			pt.Track.URI,
			strconv.FormatBool(pt.IsLocal),
		}
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

// ExportToMarkdown renders a heading, an optional cover image and a numbered track list.
func ExportToMarkdown(export *Export, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	p := export.Playlist

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}
	if p.Owner.DisplayName != "" {
		fmt.Fprintf(&buf, "**Owner**: %s\n", p.Owner.DisplayName)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n", len(export.Tracks))
	fmt.Fprintf(&buf, "**Length**: %s\n", FormatDuration(int(export.TotalDuration().Milliseconds())))
	if p.SnapshotID != "" {
		fmt.Fprintf(&buf, "**Snapshot**: `%s`\n", p.SnapshotID)
	}

	buf.WriteString("\n## Tracks\n\n")
	for _, pt := range export.Tracks {
		album := ""
		if pt.Track.Album != "" {
			album = fmt.Sprintf(" (%s)", pt.Track.Album)
		}
		local := ""
		if pt.IsLocal {
			local = " _local_"
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]%s\n",
			pt.Index, pt.Track.ArtistLine(), pt.Track.Title, album, FormatDuration(pt.Track.DurationMS), local)
	}
	return buf.Bytes(), nil
}

func ExportToText(export *Export) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Owner.DisplayName != "" {
		fmt.Fprintf(&buf, "Owner: %s\n", export.Playlist.Owner.DisplayName)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for _, pt := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s\n", pt.Index, pt.Track.ArtistLine(), pt.Track.Title)
	}
	return buf.Bytes(), nil
}

// DownloadImage fetches url and returns the raw bytes.
func DownloadImage(client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return data, nil
}

// Writer writes exports to disk.
type Writer struct {
	client *http.Client
	warn   func(msg string, kv ...any)
}

// NewWriter creates a Writer. client downloads cover images for Markdown exports; nil uses a default client.
// warn receives non-fatal problems and may be nil.
func NewWriter(client *http.Client, warn func(msg string, kv ...any)) *Writer {
	if warn == nil {
		warn = func(string, ...any) {}
	}
	return &Writer{client: client, warn: warn}
}

// Write exports in format to path and returns the files created.
//
// An empty path defaults to the playlist ID with the format's extension. Markdown exports
// create a directory holding README.md and, when the playlist has a cover, cover.jpg.
func (w *Writer) Write(export *Export, format Format, path string) ([]string, error) {
	if path == "" {
		path = defaultPath(export.Playlist.ID, format)
	}

	switch format {
	case FormatMarkdown:
		return w.writeMarkdown(export, path)
	case FormatJSON:
		return writeFile(path, export, ExportToJSON)
	case FormatCSV:
		return writeFile(path, export, ExportToCSV)
	case FormatText:
		return writeFile(path, export, ExportToText)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// Render writes format to out. Markdown is rendered without a cover image.
func Render(out io.Writer, export *Export, format Format) error {
	var data []byte
	var err error
	switch format {
	case FormatJSON:
		data, err = ExportToJSON(export)
	case FormatCSV:
		data, err = ExportToCSV(export)
	case FormatMarkdown:
		data, err = ExportToMarkdown(export, "")
	case FormatText:
		data, err = ExportToText(export)
	default:
		return fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func defaultPath(id string, format Format) string {
	switch format {
	case FormatMarkdown:
		return id
	case FormatText:
		return id + "_tracks.txt"
	default:
		return id + "_tracks." + string(format)
	}
}

func writeFile(path string, export *Export, render func(*Export) ([]byte, error)) ([]string, error) {
	data, err := render(export)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return []string{path}, nil
}

func (w *Writer) writeMarkdown(export *Export, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var files []string
	var cover string
	if url := export.Playlist.ImageURL; url != "" {
		data, err := DownloadImage(w.client, url)
		if err != nil {
			w.warn("failed to download cover image", "error", err)
		} else if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), data, 0644); err != nil {
			w.warn("failed to save cover image", "error", err)
		} else {
			cover = "cover.jpg"
			files = append(files, filepath.Join(dir, cover))
		}
	}

	md, err := ExportToMarkdown(export, cover)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}
	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, md, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return append(files, readme), nil
}
