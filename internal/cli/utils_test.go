package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/ingest"
	"github.com/hyperjump/medbot/internal/models"
)

func intPtr(v int) *int { return &v }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want OutputFormat
	}{
		{"json", OutputJSON},
		{" JSON ", OutputJSON},
		{"text", OutputText},
		{"", OutputText},
		{"yaml", OutputText},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteChatResponse_JSON(t *testing.T) {
	resp := &models.ChatResponse{
		Response: "I found 1 doctor",
		Doctors:  []models.ProviderSummary{{Name: "Dr. A", Specialty: "Cardiology", Location: "Lahore", Fee: 1500}},
	}
	var buf bytes.Buffer
	if err := WriteChatResponse(&buf, resp, OutputJSON); err != nil {
		t.Fatalf("WriteChatResponse(json): %v", err)
	}
	var decoded struct {
		Response string                   `json:"response"`
		Doctors  []map[string]interface{} `json:"doctors"`
	}
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Response != resp.Response || len(decoded.Doctors) != 1 {
		t.Errorf("decoded: %+v", decoded)
	}
	if decoded.Doctors[0]["fee"] != float64(1500) {
		t.Errorf("fee: got %v", decoded.Doctors[0]["fee"])
	}
}

func TestWriteChatResponse_text(t *testing.T) {
	resp := &models.ChatResponse{
		Response: "Here are some doctors",
		Doctors: []models.ProviderSummary{
			{Name: "Dr. A", Specialty: "Cardiology", Location: "Lahore", Fee: models.FeePlaceholder},
		},
	}
	var buf bytes.Buffer
	if err := WriteChatResponse(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Here are some doctors", "1. Dr. A", "Cardiology", "Contact for fee"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteProviders(t *testing.T) {
	providers := []*models.Provider{
		{ID: 7, Name: "Dr. B", Designation: "FCPS", Specialty: "Dermatology", Location: "Karachi", Fee: intPtr(2000), Keywords: "skin, acne"},
	}
	var buf bytes.Buffer
	if err := WriteProviders(&buf, providers, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"1 providers", "[7] Dr. B (FCPS)", "Dermatology, Karachi", "Fee: 2000", "Keywords: skin, acne"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteProviders(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON list: got %q", buf.String())
	}
}

func TestWriteIndexStatus(t *testing.T) {
	status := &IndexStatus{
		Providers: 3,
		Index: index.Info{
			State:   "built",
			Size:    3,
			BuildID: "b-1",
			BuiltAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Model:   "hash-bow-384",
			Backend: "memory",
		},
		Encoder:   "hash-bow-384",
		DiskBytes: 4096,
	}
	var buf bytes.Buffer
	if err := WriteIndexStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Providers:  3", "built (3 entries)", "b-1 at 2024-05-01 10:00:00", "memory", "4096 bytes"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	absent := &IndexStatus{Index: index.Info{State: "absent"}}
	if err := WriteIndexStatus(&buf, absent, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Build:") {
		t.Errorf("absent index should not print build details:\n%s", buf.String())
	}
}

func TestWriteImportReport(t *testing.T) {
	report := &ingest.Report{
		Files:    []string{"a.csv", "b.xlsx"},
		Imported: 4,
		Skipped:  []*ingest.RowError{{File: "a.csv", Row: 3, Err: errors.New("provider name cannot be empty")}},
	}
	var buf bytes.Buffer
	if err := WriteImportReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Imported 4 providers from 2 files") || !strings.Contains(out, "a.csv row 3") {
		t.Errorf("unexpected report:\n%s", out)
	}

	buf.Reset()
	if err := WriteImportReport(&buf, report, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Imported int      `json:"imported"`
		Skipped  []string `json:"skipped"`
	}
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Imported != 4 || len(decoded.Skipped) != 1 {
		t.Errorf("decoded: %+v", decoded)
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
