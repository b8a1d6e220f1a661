package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	applog "timetracker/internal/log"
	ports "timetracker/internal/sheets"
)

const defaultRowCacheTTL = 2 * time.Minute

// Client mirrors time entries into one sheet of a spreadsheet. Rows are
// located by the entry id in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *applog.Logger

	mu                 sync.Mutex
	rows               map[string]int
	nextRow            int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ ports.EntryMirror = (*Client)(nil)

// Options selects the target sheet and credentials.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	// OAuthClientFile and OAuthTokenFile switch to user credentials obtained
	// with `ttrack sheets-auth` instead of a service account.
	OAuthClientFile string
	OAuthTokenFile  string
	Logger          *applog.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName := strings.TrimSpace(opts.SheetName)
	if sheetName == "" {
		sheetName = "Time Entries"
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSheets)

	auth, err := clientOption(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx, auth, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "sheet", sheetName)

	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		logger:             logger,
		cacheValidDuration: defaultRowCacheTTL,
	}, nil
}

// clientOption authenticates with the saved OAuth token when one is
// configured, otherwise with service account credentials.
func clientOption(ctx context.Context, opts Options) (goption.ClientOption, error) {
	if opts.OAuthTokenFile != "" {
		clientJSON, err := os.ReadFile(opts.OAuthClientFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		cfg, err := OAuthConfig(clientJSON)
		if err != nil {
			return nil, err
		}
		tok, err := LoadToken(opts.OAuthTokenFile)
		if err != nil {
			return nil, err
		}
		return goption.WithTokenSource(cfg.TokenSource(ctx, tok)), nil
	}
	credentials, err := loadCredentials(opts)
	if err != nil {
		return nil, err
	}
	return goption.WithCredentialsJSON(credentials), nil
}

// loadCredentials prefers inline JSON, then the configured file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(opts Options) ([]byte, error) {
	if js := strings.TrimSpace(opts.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(opts.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// UpsertEntry overwrites the row holding row.EntryID or appends a new one.
func (c *Client) UpsertEntry(ctx context.Context, row ports.EntryRow) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(row.EntryID) == "" {
		return errors.New("entry row has no id")
	}

	index, next, err := c.rowIndex(ctx)
	if err != nil {
		return err
	}
	n, found := index[row.EntryID]
	if !found {
		n = next
		if n == 1 {
			if err := c.writeRow(ctx, 1, ports.Header); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
			n = 2
		}
	}
	if err := c.writeRow(ctx, n, row.Values()); err != nil {
		return err
	}

	c.mu.Lock()
	if c.rows != nil {
		c.rows[row.EntryID] = n
		if n >= c.nextRow {
			c.nextRow = n + 1
		}
	}
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Mirrored entry",
		applog.FieldEntryID, row.EntryID,
		"row", n,
		"appended", !found)
	return nil
}

// DeleteEntry clears the row holding entryID. Missing rows are not an error.
func (c *Client) DeleteEntry(ctx context.Context, entryID string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	index, _, err := c.rowIndex(ctx)
	if err != nil {
		return err
	}
	n, found := index[entryID]
	if !found {
		return nil
	}
	rng := rowRange(c.sheetName, n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}

	c.mu.Lock()
	delete(c.rows, entryID)
	c.mu.Unlock()
	c.logger.DebugContext(ctx, "Cleared mirrored entry", applog.FieldEntryID, entryID, "row", n)
	return nil
}

func (c *Client) writeRow(ctx context.Context, n int, values []any) error {
	rng := rowRange(c.sheetName, n)
	vr := &gsheet.ValueRange{Values: [][]any{values}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// rowIndex returns the id to row number map and the first free row,
// re-reading column A when the cached copy has expired.
func (c *Client) rowIndex(ctx context.Context) (map[string]int, int, error) {
	c.mu.Lock()
	if c.rows != nil && time.Now().Before(c.cacheExpiresAt) {
		rows := make(map[string]int, len(c.rows))
		for k, v := range c.rows {
			rows[k] = v
		}
		next := c.nextRow
		c.mu.Unlock()
		return rows, next, nil
	}
	c.mu.Unlock()

	rng := columnRange(c.sheetName, "A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", rng, err)
	}
	rows := indexRows(resp.Values)
	next := len(resp.Values) + 1

	c.mu.Lock()
	c.rows = make(map[string]int, len(rows))
	for k, v := range rows {
		c.rows[k] = v
	}
	c.nextRow = next
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return rows, next, nil
}

// InvalidateRowCache forces the next call to re-read column A.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.cacheExpiresAt = time.Time{}
}
