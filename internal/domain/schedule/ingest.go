package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/logger"
	"github.com/okian/league/pkg/metrics"
)

// Source reads the raw grid behind a sheet key.
type Source interface {
	FetchGrid(ctx context.Context, sheetKey string) (Grid, error)
}

// Store persists one division's fixtures. InsertMatches must be atomic: on
// error nothing of the batch is visible.
type Store interface {
	InsertMatches(ctx context.Context, matches []model.Match) error
}

// Report summarizes one ingestion.
type Report struct {
	Division string
	Matches  int
	Weeks    int
	Teams    int
}

type division struct {
	name     string
	sheetKey string
}

// Ingestor turns a division's schedule sheet into stored fixtures.
type Ingestor struct {
	source    Source
	store     Store
	divisions map[string]division
	logger    logger.Logger
}

// Option applies a configuration option to the Ingestor.
type Option func(*Ingestor)

// WithDivision registers a known division and its sheet key.
func WithDivision(name, sheetKey string) Option {
	return func(i *Ingestor) {
		if name != "" {
			i.divisions[strings.ToLower(name)] = division{name: name, sheetKey: sheetKey}
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIngestor wires an Ingestor.
func NewIngestor(source Source, store Store, opts ...Option) *Ingestor {
	i := &Ingestor{
		source:    source,
		store:     store,
		divisions: make(map[string]division),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = logger.Get().Named("schedule")
	}
	return i
}

// Divisions returns the canonical names of the known divisions.
func (i *Ingestor) Divisions() []string {
	out := make([]string, 0, len(i.divisions))
	for _, d := range i.divisions {
		out = append(out, d.name)
	}
	return out
}

// Ingest fetches, rebuilds and stores the schedule of divisionName. Unknown
// divisions are rejected before anything is fetched.
func (i *Ingestor) Ingest(ctx context.Context, divisionName string) (Report, error) {
	d, ok := i.divisions[strings.ToLower(strings.TrimSpace(divisionName))]
	if !ok {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownDivision, divisionName)
	}

	start := time.Now()
	grid, err := i.source.FetchGrid(ctx, d.sheetKey)
	if err != nil {
		metrics.RecordIngestFailure(d.name)
		return Report{}, fmt.Errorf("fetch %s schedule: %w", d.name, err)
	}

	matches, err := Build(grid, d.name)
	if err != nil {
		metrics.RecordIngestFailure(d.name)
		i.logger.Warn(ctx, "schedule rejected", logger.String("division", d.name), logger.Error(err))
		return Report{}, err
	}

	if err := i.store.InsertMatches(ctx, matches); err != nil {
		metrics.RecordIngestFailure(d.name)
		return Report{}, fmt.Errorf("store %s schedule: %w", d.name, err)
	}

	rep := Report{
		Division: d.name,
		Matches:  len(matches),
		Weeks:    matches[len(matches)-1].Week,
		Teams:    len(UniqueTeams(grid)),
	}
	metrics.RecordMatchesIngested(d.name, rep.Matches)
	i.logger.Info(ctx, "schedule ingested",
		logger.String("division", rep.Division),
		logger.Int("matches", rep.Matches),
		logger.Int("weeks", rep.Weeks),
		logger.Duration("took", time.Since(start)),
	)
	return rep, nil
}
