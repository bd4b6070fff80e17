package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/models"
)

// Writer is the store side of an import.
type Writer interface {
	UpsertProviders(ctx context.Context, providers []*models.Provider) error
}

// Report summarises an import.
type Report struct {
	Files    []string
	Imported int
	Skipped  []*RowError
}

// Importer reads provider files and upserts them into a store.
type Importer struct {
	store  Writer
	logger *zap.Logger
}

// NewImporter returns an importer writing to store.
func NewImporter(store Writer, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, logger: logger}
}

// Expand resolves glob patterns (including "**") to the supported files they match, sorted
// and de-duplicated. A pattern without glob metacharacters is returned as-is.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] && Supported(m) {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// ImportFiles reads every file and upserts each file's valid providers in one transaction.
// Unreadable files abort the import; invalid rows are skipped and reported.
func (im *Importer) ImportFiles(ctx context.Context, files []string) (*Report, error) {
	report := &Report{}
	for _, file := range files {
		providers, rowErrs, err := ReadFile(file)
		if err != nil {
			return report, fmt.Errorf("%s: %w", file, err)
		}
		for _, re := range rowErrs {
			im.logger.Warn("Skipping provider row", zap.String("file", re.File), zap.Int("row", re.Row), zap.Error(re.Err))
		}
		report.Skipped = append(report.Skipped, rowErrs...)
		if len(providers) > 0 {
			if err := im.store.UpsertProviders(ctx, providers); err != nil {
				return report, fmt.Errorf("%s: store providers: %w", file, err)
			}
		}
		report.Files = append(report.Files, file)
		report.Imported += len(providers)
		im.logger.Info("Imported providers", zap.String("file", file), zap.Int("count", len(providers)))
	}
	return report, nil
}
