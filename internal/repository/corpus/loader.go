// Package corpus loads the job posting corpus from parquet files.
package corpus

import (
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/intersect-search/intersect/internal/domain"
)

// jobRow is a raw row from a job postings parquet file.
type jobRow struct {
	ID          *string `parquet:"id"`
	Title       string  `parquet:"title"`
	Description string  `parquet:"description"`
	Company     *string `parquet:"company"`
	Location    *string `parquet:"location"`
	Salary      *string `parquet:"salary"`
	Posted      *string `parquet:"posted"`
	Source      *string `parquet:"source"`
	URL         *string `parquet:"url"`
}

// Loader reads job postings from parquet into a domain corpus.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a parquet corpus loader.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads all rows from the parquet file at path.
// Rows with an empty title or description are skipped, and rows whose
// description already appeared are dropped so duplicate listings do not
// distort corpus statistics.
func (l *Loader) Load(path string) (domain.Corpus, error) {
	rows, err := parquet.ReadFile[jobRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}

	corpus := make(domain.Corpus, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	skipped := 0

	for _, row := range rows {
		if row.Title == "" || row.Description == "" {
			skipped++
			continue
		}
		if _, dup := seen[row.Description]; dup {
			skipped++
			continue
		}
		seen[row.Description] = struct{}{}

		rec, err := domain.NewRecord(deref(row.ID), row.Title, row.Description, domain.Meta{
			Employer: deref(row.Company),
			Location: deref(row.Location),
			Salary:   deref(row.Salary),
			Posted:   parsePosted(deref(row.Posted)),
			Source:   deref(row.Source),
			URL:      deref(row.URL),
		})
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", row.Title, err)
		}
		corpus = append(corpus, rec)
	}

	l.logger.Info("Loaded corpus",
		zap.String("path", path),
		zap.Int("records", len(corpus)),
		zap.Int("skipped", skipped),
	)

	if len(corpus) == 0 {
		return nil, fmt.Errorf("no usable rows in %s", path)
	}
	return corpus, nil
}

// parsePosted accepts RFC3339 timestamps or bare dates. Anything else
// leaves Posted at the zero time.
func parsePosted(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
