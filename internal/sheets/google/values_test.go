package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"homepay/internal/sheets"
)

func TestA1QuotesTitles(t *testing.T) {
	tests := []struct {
		title          string
		row, col, h, w int
		want           string
	}{
		{"Jan 2026", 3, 1, 48, 12, "'Jan 2026'!A3:L50"},
		{"Dashboard", 2, 2, 1, 1, "'Dashboard'!B2"},
		{"Bob's", 1, 27, 1, 2, "'Bob''s'!AA1:AB1"},
	}
	for _, tt := range tests {
		if got := a1(tt.title, tt.row, tt.col, tt.h, tt.w); got != tt.want {
			t.Errorf("a1(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestToMatrixPadsRaggedRows(t *testing.T) {
	got := toMatrix([][]interface{}{{"Rent", 1500.5}, {}, {nil, true}}, 4, 3)
	want := [][]string{{"Rent", "1500.5", ""}, {"", "", ""}, {"", "TRUE", ""}, {"", "", ""}}
	for r := range want {
		for c := range want[r] {
			if got[r][c] != want[r][c] {
				t.Fatalf("cell (%d,%d) = %q, want %q", r, c, got[r][c], want[r][c])
			}
		}
	}
}

func TestGridRangeIsZeroBasedAndExclusive(t *testing.T) {
	g := gridRange(0, 3, 4, 48, 1)
	if g.StartRowIndex != 2 || g.EndRowIndex != 50 || g.StartColumnIndex != 3 || g.EndColumnIndex != 4 {
		t.Errorf("gridRange = %+v", g)
	}
}

func TestParseColor(t *testing.T) {
	c, err := parseColor("#ffffff")
	if err != nil {
		t.Fatal(err)
	}
	if c.Red != 1 || c.Green != 1 || c.Blue != 1 {
		t.Errorf("white = %+v", c)
	}
	c, err = parseColor("00ff00")
	if err != nil || c.Red != 0 || c.Green != 1 || c.Blue != 0 {
		t.Errorf("green = %+v, %v", c, err)
	}
	for _, bad := range []string{"", "#fff", "#gggggg"} {
		if _, err := parseColor(bad); err == nil {
			t.Errorf("parseColor(%q) accepted", bad)
		}
	}
}

func TestValidationRequest(t *testing.T) {
	req := validationRequest(7, 3, 1, 48, 1, []string{"Food", "Housing"})
	rule := req.SetDataValidation.Rule
	if rule.Condition.Type != "ONE_OF_LIST" || len(rule.Condition.Values) != 2 || rule.Condition.Values[1].UserEnteredValue != "Housing" {
		t.Errorf("rule = %+v", rule.Condition)
	}
	if req.SetDataValidation.Range.SheetId != 7 {
		t.Errorf("range = %+v", req.SetDataValidation.Range)
	}
}

func TestTabAt(t *testing.T) {
	tabs := []*gsheet.SheetProperties{{Title: "Dashboard"}, {Title: "Jan 2026"}}
	if tab, err := tabAt(tabs, sheets.Month(1)); err != nil || tab.Title != "Jan 2026" {
		t.Errorf("tabAt(1) = %v, %v", tab, err)
	}
	if _, err := tabAt(tabs, sheets.Summary); !errors.Is(err, sheets.ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestEscapeQuery(t *testing.T) {
	if got := escapeQuery(`Bob's \ 2026`); got != `Bob\'s \\ 2026` {
		t.Errorf("escapeQuery = %q", got)
	}
}

func TestAuthConfigured(t *testing.T) {
	tests := []struct {
		name string
		auth Auth
		want bool
	}{
		{"none", Auth{}, false},
		{"service account file", Auth{ServiceAccountFile: "/sa.json"}, true},
		{"oauth client without token", Auth{OAuthClientFile: "/client.json"}, false},
		{"oauth client and token", Auth{OAuthClientJSON: "{}", OAuthTokenFile: "/token.json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientOptionsErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := ClientOptions(ctx, Auth{}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
	_, err := ClientOptions(ctx, Auth{OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"test"}`})
	if err == nil || !strings.Contains(err.Error(), "oauth config") {
		t.Errorf("expected oauth config error, got %v", err)
	}
	if _, err := ClientOptions(ctx, Auth{ServiceAccountFile: t.TempDir() + "/missing.json"}); err == nil {
		t.Error("missing service account file accepted")
	}
}

func TestGetRangeReadsUnformattedValues(t *testing.T) {
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"range":"'Jan 2026'!D3:E3","majorDimension":"ROWS","values":[[1234,"Mar-05-2026"]]}`)
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gsheet.NewService(ctx, goption.WithEndpoint(srv.URL+"/"), goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	g := NewGrid(svc, "sheet-id", "Home payments 2026")
	g.tabs = []*gsheet.SheetProperties{{Title: "Dashboard"}, {Title: "Jan 2026"}}

	got, err := g.GetRange(ctx, sheets.Month(1), 3, 4, 1, 2)
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if got[0][0] != "1234" || got[0][1] != "Mar-05-2026" {
		t.Fatalf("GetRange = %v", got)
	}
	if v := query.Get("valueRenderOption"); v != "UNFORMATTED_VALUE" {
		t.Errorf("valueRenderOption = %q", v)
	}
	if v := query.Get("dateTimeRenderOption"); v != "FORMATTED_STRING" {
		t.Errorf("dateTimeRenderOption = %q", v)
	}
}
