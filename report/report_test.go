package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAddAndTotals(t *testing.T) {
	r := New("build-1")
	r.Add("classes.dex", 100, true)
	r.Add("classes2.dex", 50, false)
	r.Add("lib/arm64-v8a/libfoo.so", 200, true)

	encrypted, retained := r.Totals()
	if encrypted != 300 {
		t.Errorf("encrypted = %d, want 300", encrypted)
	}
	if retained != 50 {
		t.Errorf("retained = %d, want 50", retained)
	}
}

func TestSaveWritesValidJSON(t *testing.T) {
	r := New("build-2")
	r.Add("classes.dex", 10, true)

	path := filepath.Join(t.TempDir(), "report.json")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.BuildID != "build-2" {
		t.Errorf("BuildID = %q, want %q", got.BuildID, "build-2")
	}
	if len(got.Outcomes) != 1 {
		t.Fatalf("len(Outcomes) = %d, want 1", len(got.Outcomes))
	}
}

func TestGraphEmptyReportProducesPlaceholder(t *testing.T) {
	r := New("build-3")
	var buf bytes.Buffer
	if err := r.Graph(&buf); err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("svg")) {
		t.Errorf("Graph output does not look like SVG: %q", buf.String())
	}
}

func TestGraphNonEmptyReport(t *testing.T) {
	r := New("build-4")
	r.Add("classes.dex", 100, true)
	r.Add("classes2.dex", 50, false)
	var buf bytes.Buffer
	if err := r.Graph(&buf); err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Graph wrote no bytes")
	}
}
