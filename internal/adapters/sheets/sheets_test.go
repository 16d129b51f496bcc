package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/internal/domain/schedule"
)

func intp(v int) *int { return &v }

func TestParserFor(t *testing.T) {
	p, err := ParserFor("poke.CSV")
	require.NoError(t, err)
	assert.IsType(t, CSVParser{}, p)

	p, err = ParserFor("dir/ultra.xlsx")
	require.NoError(t, err)
	assert.IsType(t, XLSXParser{}, p)

	_, err = ParserFor("notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestCSVParserRaggedRows(t *testing.T) {
	grid, err := CSVParser{}.Parse([]byte("Week 1,,,\n,,Alpha,0,0,Beta\n"))
	require.NoError(t, err)
	want := schedule.Grid{{"Week 1", "", "", ""}, {"", "", "Alpha", "0", "0", "Beta"}}
	if diff := cmp.Diff(want, grid); diff != "" {
		t.Fatalf("grid mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchTable(t *testing.T) {
	played := model.Match{
		Week: 1, Team1: "Alpha", Team2: "Beta", Division: "Poke", Played: true,
		Score1: intp(2), Score2: intp(-2), Replays: []string{"r1", "r2"},
	}
	open := model.Match{Week: 2, Team1: "Alpha", Team2: "Gamma", Division: "Poke"}

	table := MatchTable([]model.Match{played, open})
	want := Table{
		Header,
		{"1", "Alpha", "Beta", "2", "-2", "1", "r1", "r2", "", "Poke"},
		{"2", "Alpha", "Gamma", "", "", "0", "", "", "", "Poke"},
	}
	if diff := cmp.Diff(want, table); diff != "" {
		t.Fatalf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestFileSourceRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := NewFileSource(dir)
	table := Table{Header, {"1", "Alpha", "Beta", "", "", "0", "", "", "", "Poke"}}

	for _, key := range []string{"matches", "matches.csv"} {
		t.Run(key, func(t *testing.T) {
			require.NoError(t, src.Publish(ctx, key, table))
			grid, err := src.FetchGrid(ctx, key)
			require.NoError(t, err)
			require.Len(t, grid, 2)
			assert.Equal(t, Header, grid[0])
			assert.Equal(t, "Beta", grid[1][2])
		})
	}

	_, err := os.Stat(filepath.Join(dir, "matches.xlsx"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "matches.tmp.xlsx"))
	assert.True(t, os.IsNotExist(err))

	_, err = src.FetchGrid(ctx, "missing")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	// Keys cannot escape the directory.
	_, err = src.FetchGrid(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrSheetNotFound)
}

func TestFileSourcePrefersXLSX(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "poke.csv"), []byte("from,csv\n"), 0o600))
	src := NewFileSource(dir)
	require.NoError(t, src.Publish(ctx, "poke", Table{{"from", "xlsx"}}))

	grid, err := src.FetchGrid(ctx, "poke")
	require.NoError(t, err)
	assert.Equal(t, schedule.Grid{{"from", "xlsx"}}, grid)
}

func TestRemoteSource(t *testing.T) {
	ctx := context.Background()
	var published sheetsapi.ValueRange
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v4/spreadsheets/sheet-1/values/Schedule!A1:N":
			assert.Equal(t, "ROWS", r.URL.Query().Get("majorDimension"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"range":"Schedule!A1:N","values":[["Week 1"],["","","Alpha","0","0","Beta"]]}`))
		case r.Method == http.MethodPut && r.URL.Path == "/v4/spreadsheets/export-1/values/Matches!A1":
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&published))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		case r.URL.Path == "/v4/spreadsheets/broken/values/Schedule!A1:N":
			http.Error(w, "bad range", http.StatusBadRequest)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewRemoteSource(ctx, WithHTTPClient(srv.Client()), WithEndpoint(srv.URL))
	require.NoError(t, err)

	grid, err := src.FetchGrid(ctx, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, "Beta", grid[1][5])
	assert.Equal(t, schedule.Grid{{"Week 1"}, {"", "", "Alpha", "0", "0", "Beta"}}, grid)

	table := Table{Header}
	require.NoError(t, src.Publish(ctx, "export-1", table))
	assert.Equal(t, "Matches!A1", published.Range)
	require.Len(t, published.Values, 1)
	assert.Len(t, published.Values[0], len(Header))
	assert.Equal(t, Header[0], published.Values[0][0])

	_, err = src.FetchGrid(ctx, "missing")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	_, err = src.FetchGrid(ctx, "broken")
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "bad range")
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", cellText(nil))
	assert.Equal(t, "Alpha", cellText("Alpha"))
	assert.Equal(t, "2", cellText(float64(2)))
}
