package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/okian/league/internal/domain/schedule"
)

const (
	defaultReadRange = ScheduleTab + "!A1:N"
	// ScheduleTab is the worksheet holding a division's grid.
	ScheduleTab = "Schedule"
)

// RemoteSource reads and writes hosted spreadsheets through the Sheets API.
type RemoteSource struct {
	svc       *sheetsapi.Service
	client    *http.Client
	endpoint  string
	readRange string
}

// RemoteOption applies a configuration option to the RemoteSource.
type RemoteOption func(*RemoteSource)

// WithHTTPClient sets the client used for every call.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(s *RemoteSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEndpoint overrides the API root, e.g. "https://sheets.googleapis.com/".
func WithEndpoint(endpoint string) RemoteOption {
	return func(s *RemoteSource) {
		if endpoint != "" {
			s.endpoint = strings.TrimRight(endpoint, "/") + "/"
		}
	}
}

// WithReadRange sets the A1 range read from each schedule sheet.
func WithReadRange(r string) RemoteOption {
	return func(s *RemoteSource) {
		if r != "" {
			s.readRange = r
		}
	}
}

// NewRemoteSource builds a RemoteSource on the Sheets v4 client.
func NewRemoteSource(ctx context.Context, opts ...RemoteOption) (*RemoteSource, error) {
	s := &RemoteSource{
		client:    &http.Client{Timeout: 30 * time.Second},
		readRange: defaultReadRange,
	}
	for _, opt := range opts {
		opt(s)
	}

	clientOpts := []option.ClientOption{option.WithHTTPClient(s.client)}
	if s.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(s.endpoint))
	}
	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemote, err)
	}
	s.svc = svc
	return s, nil
}

// ServiceAccountClient returns an HTTP client authorized by the service
// account key file at path.
func ServiceAccountClient(ctx context.Context, path string) (*http.Client, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(key, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return cfg.Client(ctx), nil
}

// FetchGrid reads the configured range of the spreadsheet key.
func (s *RemoteSource) FetchGrid(ctx context.Context, key string) (schedule.Grid, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(key, s.readRange).
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", key, classify(err))
	}
	grid := make(schedule.Grid, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = cellText(v)
		}
		grid[i] = cells
	}
	return grid, nil
}

// Publish overwrites the export tab of spreadsheet key starting at A1.
func (s *RemoteSource) Publish(ctx context.Context, key string, t Table) error {
	target := ExportTab + "!A1"
	values := make([][]interface{}, len(t))
	for i, row := range t {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}
	_, err := s.svc.Spreadsheets.Values.Update(key, target, &sheetsapi.ValueRange{
		Range:          target,
		MajorDimension: "ROWS",
		Values:         values,
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, classify(err))
	}
	return nil
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound {
			return ErrSheetNotFound
		}
		return fmt.Errorf("%w: %w", ErrRemote, apiErr)
	}
	return err
}

func cellText(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}
