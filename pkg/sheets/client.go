package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/tirestore-backend/pkg/config"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

const (
	valueInputOption = "USER_ENTERED"
	insertDataOption = "INSERT_ROWS"
)

// RowStore appends and reads rows of a single sheet range.
type RowStore interface {
	AppendRow(ctx context.Context, row []any) error
	ReadRows(ctx context.Context) ([][]any, error)
}

// Client wraps the Sheets values API for one spreadsheet range.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	rng           string
}

func NewClient(ctx context.Context, cfg config.SheetsConfig, gcp config.GCPConfig, logg *logger.Logger, extra ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("sheets spreadsheet id is required")
	}
	if strings.TrimSpace(cfg.LedgerRange) == "" {
		return nil, errors.New("sheets range is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	switch {
	case gcp.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case gcp.ApplicationCredentials != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	opts = append(opts, extra...)

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "sheets client initialized")
	}
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, rng: cfg.LedgerRange}, nil
}

func (c *Client) AppendRow(ctx context.Context, row []any) error {
	if c == nil || c.svc == nil {
		return errors.New("sheets client not initialized")
	}
	_, err := c.svc.Spreadsheets.Values.
		Append(c.spreadsheetID, c.rng, &sheetsapi.ValueRange{Values: [][]any{row}}).
		ValueInputOption(valueInputOption).
		InsertDataOption(insertDataOption).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (c *Client) ReadRows(ctx context.Context) ([][]any, error) {
	if c == nil || c.svc == nil {
		return nil, errors.New("sheets client not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return resp.Values, nil
}

// Ping reads the spreadsheet metadata.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errors.New("sheets client not initialized")
	}
	if _, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	return nil
}
