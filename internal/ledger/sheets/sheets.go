// Package sheets writes ledger rows in a Google Sheets spreadsheet. Rows are
// keyed by verification code id in column A and maintained by operators; this
// package only fills in cells of existing rows.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"kycdesk/internal/kyc/models"
	"kycdesk/internal/ledger"
	"kycdesk/pkg/platform/sentinel"
)

const (
	keyColumn        = "A"
	statusColumn     = "F"
	personalInfoCols = "I%d:K%d"
	valueInputOption = "USER_ENTERED"
)

// Ledger updates a single sheet of one spreadsheet.
type Ledger struct {
	values        *sheetsapi.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
}

// New builds a Sheets client. Pass option.WithCredentialsFile in production
// and option.WithEndpoint plus option.WithoutAuthentication in tests.
func New(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*Ledger, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id required: %w", sentinel.ErrInvalidState)
	}
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &Ledger{
		values:        svc.Spreadsheets.Values,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

func (l *Ledger) MarkSubmitted(ctx context.Context, codeID string) error {
	row, err := l.findRow(ctx, codeID)
	if err != nil {
		return err
	}
	return l.update(ctx, fmt.Sprintf("%s%d", statusColumn, row), []any{ledger.StatusSubmitted})
}

func (l *Ledger) RecordPersonalInfo(ctx context.Context, codeID string, info models.PersonalInfo) error {
	row, err := l.findRow(ctx, codeID)
	if err != nil {
		return err
	}
	return l.update(ctx, fmt.Sprintf(personalInfoCols, row, row), []any{info.DateOfBirth, info.PhoneNo, info.NIN})
}

// findRow returns the 1-based row whose key cell equals codeID.
func (l *Ledger) findRow(ctx context.Context, codeID string) (int, error) {
	resp, err := l.values.Get(l.spreadsheetID, l.rangeOf(keyColumn+":"+keyColumn)).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read ledger keys: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && cell == codeID {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("ledger row for %s: %w", codeID, sentinel.ErrNotFound)
}

func (l *Ledger) update(ctx context.Context, cells string, values []any) error {
	_, err := l.values.Update(l.spreadsheetID, l.rangeOf(cells), &sheetsapi.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update ledger %s: %w", cells, err)
	}
	return nil
}

func (l *Ledger) rangeOf(cells string) string {
	return l.sheetName + "!" + cells
}
