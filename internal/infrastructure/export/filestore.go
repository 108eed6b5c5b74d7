package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ShortsIntel/internal/ports"
)

// FileStore writes run artifacts under a single output directory. Artifact
// names carry the brand and run ID so consecutive runs never clobber each
// other.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

var _ ports.ReportSink = (*FileStore)(nil)

func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if dir == "" {
		dir = "reports"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{dir: dir, logger: logger.With("component", "export")}
}

// SaveCollection stores the raw collection payload for a run.
func (s *FileStore) SaveCollection(ctx context.Context, brand string, runID string, payload []byte) (string, error) {
	return s.write(ctx, fileName(brand, "data", runID, "json"), payload)
}

// SaveIntelligence stores the synthesized intelligence report.
func (s *FileStore) SaveIntelligence(ctx context.Context, brand string, runID string, payload []byte) (string, error) {
	return s.write(ctx, fileName(brand, "intelligence", runID, "json"), payload)
}

// SaveSummary stores the human-readable run summary.
func (s *FileStore) SaveSummary(ctx context.Context, brand string, runID string, text string) (string, error) {
	return s.write(ctx, fileName(brand, "report", runID, "txt"), []byte(text))
}

// SaveFailure stores the diagnostic artifact for an aborted run.
func (s *FileStore) SaveFailure(ctx context.Context, brand string, runID string, payload []byte) (string, error) {
	return s.write(ctx, fileName(brand, "failure", runID, "json"), payload)
}

func (s *FileStore) write(_ context.Context, name string, payload []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", name, err)
	}
	s.logger.Debug("artifact saved", "path", path, "bytes", len(payload))
	return path, nil
}

func fileName(brand, kind, runID, ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", slug(brand), kind, runID, ext)
}

func slug(brand string) string {
	brand = strings.ToLower(strings.TrimSpace(brand))
	var b strings.Builder
	for _, r := range brand {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
