package ingest

import (
	"strings"
	"testing"
)

func TestCheckFilename(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{"csv accepted", "orders.csv", ""},
		{"empty name", "", "No file provided"},
		{"wrong extension", "orders.xlsx", "File is not CSV type"},
		{"extensionless", "orders", "File is not CSV type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFilename(tt.file)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("CheckFilename(%q) = %v, want nil", tt.file, err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("CheckFilename(%q) = %v, want %q", tt.file, err, tt.wantErr)
			}
		})
	}
}

func TestParseOrders(t *testing.T) {
	t.Run("full file", func(t *testing.T) {
		input := "symbol,quantity,action,username\n" +
			"ACME,10,buy,alice\n" +
			"XYZ,5,sell,bob\n"

		rows, err := ParseOrders(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseOrders() error: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("len(rows) = %d, want 2", len(rows))
		}
		if rows[0].Username != "alice" || rows[0].Order.Symbol != "ACME" || rows[0].Order.Action != "buy" {
			t.Errorf("rows[0] = %+v", rows[0])
		}
		if q, ok := rows[0].Order.Quantity.(string); !ok || q != "10" {
			t.Errorf("rows[0].Order.Quantity = %v, want string \"10\"", rows[0].Order.Quantity)
		}
	})

	t.Run("columns in any order, unknown columns ignored", func(t *testing.T) {
		input := "username,note,action,symbol,quantity\n" +
			"alice,hi,buy,ACME,3\n"

		rows, err := ParseOrders(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseOrders() error: %v", err)
		}
		if rows[0].Order.Symbol != "ACME" || rows[0].Order.Action != "buy" || rows[0].Username != "alice" {
			t.Errorf("rows[0] = %+v", rows[0])
		}
	})

	t.Run("blank quantity stays absent", func(t *testing.T) {
		input := "symbol,quantity,action\nACME,,buy\n"

		rows, err := ParseOrders(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseOrders() error: %v", err)
		}
		if rows[0].Order.Quantity != nil {
			t.Errorf("Quantity = %v, want nil for blank cell", rows[0].Order.Quantity)
		}
	})

	t.Run("short row leaves trailing fields empty", func(t *testing.T) {
		input := "symbol,quantity,action,username\nACME,2\n"

		rows, err := ParseOrders(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseOrders() error: %v", err)
		}
		if rows[0].Order.Action != "" || rows[0].Username != "" {
			t.Errorf("rows[0] = %+v, want empty action and username", rows[0])
		}
	})

	t.Run("missing header is a top-level error", func(t *testing.T) {
		if _, err := ParseOrders(strings.NewReader("")); err == nil {
			t.Error("ParseOrders(empty) = nil error, want failure")
		}
	})

	t.Run("header only yields no rows", func(t *testing.T) {
		rows, err := ParseOrders(strings.NewReader("symbol,quantity,action\n"))
		if err != nil {
			t.Fatalf("ParseOrders() error: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("len(rows) = %d, want 0", len(rows))
		}
	})
}
