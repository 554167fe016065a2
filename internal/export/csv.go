// internal/export/csv.go
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pvmonitor/harvest-cli/internal/harvest"
)

// CSVSink writes extracted tables as CSV files under a fixed directory. It
// implements harvest.TableSink.
type CSVSink struct {
	dir    string
	logger *zap.Logger
}

var _ harvest.TableSink = (*CSVSink)(nil)

func NewCSVSink(dir string, logger *zap.Logger) *CSVSink {
	return &CSVSink{dir: dir, logger: logger.Named("csv_sink")}
}

// Write persists the table under the given filename. Ragged rows are written
// with their own arity; the CSV writer does not enforce the header width.
func (s *CSVSink) Write(table *harvest.ExtractedTable, filename string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(s.dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(table.Headers) > 0 {
		if err := w.Write(table.Headers); err != nil {
			return fmt.Errorf("writing headers: %w", err)
		}
	}
	for _, row := range table.Rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}

	s.logger.Info("Table written",
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)))
	return nil
}
