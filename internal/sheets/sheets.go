package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"jerseysync/internal/config"
	"jerseysync/internal/models"
	"jerseysync/internal/retry"
)

// Service reads and updates the jersey orders worksheet. All remote calls
// go through the retry policy; the sheet is the system of record, so
// writes are targeted single-cell updates, never full-row rewrites.
type Service struct {
	srv           *sheets.Service
	spreadsheetID string
	sheetName     string
	policy        *retry.Policy
	logger        *zerolog.Logger

	mu      sync.RWMutex
	columns map[string]int // header name -> zero-based column
}

func NewService(ctx context.Context, cfg config.GoogleConfig, policy *retry.Policy, logger *zerolog.Logger) (*Service, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwtConfig.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &Service{
		srv:           srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.OrdersSheetName,
		policy:        policy,
		logger:        logger,
	}, nil
}

// TestConnection reads the first header cell to verify access.
func (s *Service) TestConnection(ctx context.Context) error {
	return s.policy.Do(ctx, "sheets.test_connection", func(ctx context.Context) error {
		_, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeRef("A1")).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}
		return nil
	})
}

// ServiceAccountEmail extracts the service account identity from the
// credentials file, for sharing instructions.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// Orders reads the whole worksheet and maps every data row. The sentinel
// trailer row and rows without a name are kept; callers filter by intent.
func (s *Service) Orders(ctx context.Context) ([]models.Order, error) {
	var resp *sheets.ValueRange
	err := s.policy.Do(ctx, "sheets.read_orders", func(ctx context.Context) error {
		var err error
		resp, err = s.srv.Spreadsheets.Values.Get(s.spreadsheetID, s.rangeRef("A:BZ")).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read orders sheet: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("orders sheet %q is empty", s.sheetName)
	}

	cols := headerColumns(resp.Values[0])
	s.mu.Lock()
	s.columns = cols
	s.mu.Unlock()

	orders := make([]models.Order, 0, len(resp.Values)-1)
	for i, row := range resp.Values[1:] {
		orders = append(orders, orderFromRow(cols, row, i+2))
	}

	s.logger.Debug().Int("rows", len(orders)).Msg("orders sheet loaded")
	return orders, nil
}

// FindOrderRow re-locates an order by its name tuple, returning the
// current 1-based row. The sheet has no stable row id, so every write
// re-resolves the row to survive edits between read and write.
func (s *Service) FindOrderRow(ctx context.Context, id models.OrderIdentity) (int, error) {
	orders, err := s.Orders(ctx)
	if err != nil {
		return 0, err
	}
	for _, o := range orders {
		if o.FirstName == id.FirstName && o.LastName == id.LastName {
			return o.Row, nil
		}
	}
	return 0, fmt.Errorf("order for %q not found in sheet", id.FullName())
}

// MarkContacted writes the contacted date into the order's Contacted
// cell, re-locating the row by name first. Only that one cell changes.
func (s *Service) MarkContacted(ctx context.Context, id models.OrderIdentity, date time.Time) error {
	row, err := s.FindOrderRow(ctx, id)
	if err != nil {
		return err
	}
	return s.UpdateCell(ctx, row, models.ColContacted, models.DoneOn(date).SheetValue())
}

// UpdateCell writes one value into the cell at (row, header column).
func (s *Service) UpdateCell(ctx context.Context, row int, header, value string) error {
	col, err := s.columnFor(header)
	if err != nil {
		return err
	}
	cellRef := s.rangeRef(fmt.Sprintf("%s%d", columnLetter(col), row))

	err = s.policy.Do(ctx, "sheets.update_cell", func(ctx context.Context) error {
		_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, cellRef, &sheets.ValueRange{
			Values: [][]interface{}{{value}},
		}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", cellRef, err)
	}

	s.logger.Info().Str("cell", cellRef).Str("value", value).Msg("sheet cell updated")
	return nil
}

func (s *Service) columnFor(header string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.columns == nil {
		return 0, fmt.Errorf("sheet header not loaded, read orders first")
	}
	col, ok := s.columns[header]
	if !ok {
		return 0, fmt.Errorf("column %q not present in sheet header", header)
	}
	return col, nil
}

func (s *Service) rangeRef(cells string) string {
	return fmt.Sprintf("'%s'!%s", s.sheetName, cells)
}
