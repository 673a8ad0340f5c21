// Package report tracks and persists per-build packing statistics: how many
// bytes of each candidate were encrypted versus retained in plaintext. It is
// a post-hoc build artifact (a JSON summary plus an SVG bar chart), not
// interactive progress reporting — that responsibility belongs to an
// external GUI driver.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	chart "github.com/wcharczuk/go-chart/v2"
)

// Outcome records what happened to a single candidate entry.
type Outcome struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Encrypted bool   `json:"encrypted"`
}

// Report accumulates Outcomes for one packer run. All exported methods are
// safe for concurrent use, mirroring a per-language download counter:
// reads hold a shared read-lock while writes hold the exclusive lock. The
// packer itself is single-threaded, but Report is kept concurrency-safe so
// a future parallel candidate scan does not need to revisit this type.
type Report struct {
	mu      sync.RWMutex
	BuildID string `json:"build_id"`
	// PayloadDigest is the hex-encoded SHA-256 of the packed payload blob.
	// A release build feeds this back in as --expected-payload-digest for
	// the build whose embedded loader must enforce it: the digest cannot
	// be known before the blob it describes has been built.
	PayloadDigest string    `json:"payload_digest"`
	Outcomes      []Outcome `json:"outcomes"`
}

// New returns an empty Report stamped with buildID.
func New(buildID string) *Report {
	return &Report{BuildID: buildID}
}

// Add records the outcome for one candidate entry.
func (r *Report) Add(name string, size int64, encrypted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes = append(r.Outcomes, Outcome{Name: name, Size: size, Encrypted: encrypted})
}

// SetPayloadDigest records the packed payload blob's digest.
func (r *Report) SetPayloadDigest(digest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PayloadDigest = digest
}

// Totals returns the summed byte counts of encrypted and retained entries.
func (r *Report) Totals() (encryptedBytes, retainedBytes int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.Outcomes {
		if o.Encrypted {
			encryptedBytes += o.Size
		} else {
			retainedBytes += o.Size
		}
	}
	return encryptedBytes, retainedBytes
}

// Save persists the report as JSON to path.
func (r *Report) Save(path string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return nil
}

// Graph renders a bar chart of encrypted-vs-retained byte totals as SVG into
// w. When both totals are zero (no candidates processed yet — should not
// happen for a completed pack, but guards against rendering a degenerate
// chart) a minimal placeholder SVG is written instead, since go-chart
// rejects an all-zero value range.
func (r *Report) Graph(w io.Writer) error {
	encrypted, retained := r.Totals()

	if encrypted == 0 && retained == 0 {
		const noDataSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="400" height="150">` +
			`<text x="200" y="75" text-anchor="middle" font-size="16">No entries packed</text>` +
			`</svg>`
		_, err := fmt.Fprint(w, noDataSVG)
		return err
	}

	bar := chart.BarChart{
		Title: "Packed bytes: encrypted vs retained",
		Bars: []chart.Value{
			{Value: float64(encrypted), Label: "encrypted"},
			{Value: float64(retained), Label: "retained"},
		},
	}
	return bar.Render(chart.SVG, w)
}
