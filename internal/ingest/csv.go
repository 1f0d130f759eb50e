package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"trade-ledger/internal/models"
)

// Row is one parsed line of a bulk-order file. Username is only present in
// locally polled files; uploaded batches belong to the authenticated user.
type Row struct {
	Username string
	Order    models.RawOrder
}

// CheckFilename runs the pre-parse checks on a batch source before any
// reading is attempted.
func CheckFilename(name string) error {
	if name == "" {
		return errors.New("No file provided")
	}
	if !strings.HasSuffix(name, ".csv") {
		return errors.New("File is not CSV type")
	}
	return nil
}

// ParseOrders reads a headered CSV of raw orders. Recognized columns are
// symbol, quantity, action and username; unknown columns are ignored and
// missing cells stay absent so the validator reports them per row rather
// than the parse failing the whole file.
func ParseOrders(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}

		order := models.RawOrder{
			Symbol: cell(record, columns, "symbol"),
			Action: cell(record, columns, "action"),
		}
		// A blank quantity cell stays absent instead of becoming "".
		if q := cell(record, columns, "quantity"); q != "" {
			order.Quantity = q
		}

		rows = append(rows, Row{
			Username: cell(record, columns, "username"),
			Order:    order,
		})
	}

	return rows, nil
}

func cell(record []string, columns map[string]int, name string) string {
	i, ok := columns[name]
	if !ok || i >= len(record) {
		return ""
	}
	return record[i]
}
