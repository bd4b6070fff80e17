// Package ingest loads provider records from spreadsheet and YAML files.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/medbot/internal/models"
)

// RowError describes a record that could not be read.
type RowError struct {
	File string
	Row  int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.File, e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Supported reports whether path has an extension ReadFile understands.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".yaml", ".yml":
		return true
	}
	return false
}

// ReadFile parses the providers in path. Rows that fail validation are returned as RowErrors
// alongside the valid providers; a non-nil error means the file itself could not be read.
func ReadFile(path string) ([]*models.Provider, []*RowError, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	return ReadBytes(content, filepath.Base(path), strings.ToLower(filepath.Ext(path)))
}

// ReadBytes parses content according to ext (with leading dot). name labels row errors.
func ReadBytes(content []byte, name, ext string) ([]*models.Provider, []*RowError, error) {
	switch ext {
	case ".csv":
		rows, err := readCSV(content)
		if err != nil {
			return nil, nil, err
		}
		providers, rowErrs := fromRows(name, rows)
		return providers, rowErrs, nil
	case ".xlsx":
		rows, err := readXLSX(content)
		if err != nil {
			return nil, nil, err
		}
		providers, rowErrs := fromRows(name, rows)
		return providers, rowErrs, nil
	case ".yaml", ".yml":
		return readYAML(content, name)
	default:
		return nil, nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func readCSV(content []byte) ([][]string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse CSV: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// readXLSX returns the rows of the first sheet.
func readXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readYAML(content []byte, name string) ([]*models.Provider, []*RowError, error) {
	var doc struct {
		Providers []*models.Provider `yaml:"providers"`
	}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse YAML: %w", err)
	}
	var providers []*models.Provider
	var rowErrs []*RowError
	for i, p := range doc.Providers {
		if p == nil {
			continue
		}
		normalize(p)
		if err := p.Validate(); err != nil {
			rowErrs = append(rowErrs, &RowError{File: name, Row: i + 1, Err: err})
			continue
		}
		providers = append(providers, p)
	}
	return providers, rowErrs, nil
}

var columnAliases = map[string]string{
	"id":                    "id",
	"name":                  "name",
	"designation":           "designation",
	"speciality":            "speciality",
	"specialty":             "speciality",
	"location":              "location",
	"city":                  "location",
	"fee":                   "fee",
	"keywords":              "keywords",
	"symptom_to_speciality": "symptom_to_speciality",
	"symptoms":              "symptom_to_speciality",
	"disease_examples":      "disease_examples",
	"diseases":              "disease_examples",
}

// fromRows maps a header row plus data rows to providers. Row numbers in errors are 1-based
// and count the header.
func fromRows(name string, rows [][]string) ([]*models.Provider, []*RowError) {
	if len(rows) == 0 {
		return nil, nil
	}
	columns := make(map[string]int)
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := columnAliases[key]; ok {
			if _, dup := columns[canonical]; !dup {
				columns[canonical] = i
			}
		}
	}
	if _, ok := columns["name"]; !ok {
		return nil, []*RowError{{File: name, Row: 1, Err: fmt.Errorf("missing required column %q", "name")}}
	}
	if _, ok := columns["speciality"]; !ok {
		return nil, []*RowError{{File: name, Row: 1, Err: fmt.Errorf("missing required column %q", "speciality")}}
	}

	var providers []*models.Provider
	var rowErrs []*RowError
	for i, row := range rows[1:] {
		rowNum := i + 2
		if blank(row) {
			continue
		}
		cell := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		p := &models.Provider{
			Name:        cell("name"),
			Designation: cell("designation"),
			Specialty:   cell("speciality"),
			Location:    cell("location"),
			Keywords:    cell("keywords"),
			Symptoms:    cell("symptom_to_speciality"),
			Diseases:    cell("disease_examples"),
		}
		if v := cell("id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				rowErrs = append(rowErrs, &RowError{File: name, Row: rowNum, Err: fmt.Errorf("invalid id %q", v)})
				continue
			}
			p.ID = id
		}
		fee, err := parseFee(cell("fee"))
		if err != nil {
			rowErrs = append(rowErrs, &RowError{File: name, Row: rowNum, Err: err})
			continue
		}
		p.Fee = fee
		if err := p.Validate(); err != nil {
			rowErrs = append(rowErrs, &RowError{File: name, Row: rowNum, Err: err})
			continue
		}
		providers = append(providers, p)
	}
	return providers, rowErrs
}

// parseFee accepts an integer, optionally with thousands separators or a "Rs." prefix.
// Empty cells and the fee placeholder mean no fee on record.
func parseFee(v string) (*int, error) {
	if v == "" || strings.EqualFold(v, models.FeePlaceholder) {
		return nil, nil
	}
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(v), "rs."), "rs"))
	s = strings.ReplaceAll(s, ",", "")
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		fee := int(f)
		return &fee, nil
	}
	return nil, fmt.Errorf("invalid fee %q", v)
}

func normalize(p *models.Provider) {
	p.Name = strings.TrimSpace(p.Name)
	p.Designation = strings.TrimSpace(p.Designation)
	p.Specialty = strings.TrimSpace(p.Specialty)
	p.Location = strings.TrimSpace(p.Location)
	p.Keywords = strings.TrimSpace(p.Keywords)
	p.Symptoms = strings.TrimSpace(p.Symptoms)
	p.Diseases = strings.TrimSpace(p.Diseases)
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
