package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"foodgram/internal/core"
	"foodgram/internal/metrics"
	ports "foodgram/internal/sheets"
)

const breakerName = "google-sheets"

var _ ports.ShoppingListExporter = (*Client)(nil)

// valuesAPI is the part of the Sheets values service the exporter uses.
type valuesAPI interface {
	Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (updatedRange string, err error)
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (string, error) {
	resp, err := v.svc.Spreadsheets.Values.Append(spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}

// Options configure the exporter.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

// Client appends shopping lists to a sheet. Calls go through a circuit
// breaker so a failing Sheets API does not stall the worker.
type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheet         string
	breaker       *gobreaker.CircuitBreaker[string]
	now           func() time.Time
}

// New creates a Sheets exporter authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(sheetsValues{svc: svc}, opts), nil
}

func newClient(values valuesAPI, opts Options) *Client {
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Shopping"
	}
	return &Client{
		values:        values,
		spreadsheetID: opts.SpreadsheetID,
		sheet:         sheet,
		breaker:       newBreaker(),
		now:           time.Now,
	}
}

func newBreaker() *gobreaker.CircuitBreaker[string] {
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
}

// newSheetsService initializes a Sheets service from service account
// credentials, inline JSON first, then the file.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(opts.CredentialsJSON) != "":
		credentialsJSON = []byte(opts.CredentialsJSON)
	case strings.TrimSpace(opts.CredentialsFile) != "":
		data, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// Export appends one row per shopping list line. An empty list writes
// nothing and returns an empty reference.
func (c *Client) Export(ctx context.Context, userID int64, list core.ShoppingList) (string, error) {
	if list.IsEmpty() {
		return "", nil
	}
	rows := ports.Rows(userID, c.now(), list)
	rng := fmt.Sprintf("%s!A:E", c.sheet)

	ref, err := c.breaker.Execute(func() (string, error) {
		return c.values.Append(ctx, c.spreadsheetID, rng, rows)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BreakerRequests.WithLabelValues(breakerName, "rejected").Inc()
		return "", fmt.Errorf("sheets unavailable: %w", err)
	case err != nil:
		metrics.BreakerRequests.WithLabelValues(breakerName, "failure").Inc()
		return "", fmt.Errorf("append to %s: %w", rng, err)
	}
	metrics.BreakerRequests.WithLabelValues(breakerName, "success").Inc()
	return ref, nil
}
