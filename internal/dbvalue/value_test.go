package dbvalue

import "testing"

func TestDisplayNull(t *testing.T) {
	if Null().Display() != "NULL" {
		t.Fatalf("expected NULL")
	}
}

func TestDisplayBytes(t *testing.T) {
	v := Bytes([]byte{1, 2, 3})
	if v.Display() != "<3 bytes>" {
		t.Fatalf("got %q", v.Display())
	}
}

func TestQueryResultValidateOk(t *testing.T) {
	r := QueryResult{Rows: [][]Value{{Int(1)}, {Int(2)}}, RowCount: 2}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryResultValidateRowCountMismatch(t *testing.T) {
	r := QueryResult{Rows: [][]Value{{Int(1)}}, RowCount: 2}
	if err := r.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestQueryResultValidateTruncationInvariant(t *testing.T) {
	total := 5
	r := QueryResult{Rows: [][]Value{{Int(1)}}, RowCount: 1, WasTruncated: true, TotalRows: &total}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := 1
	r2 := QueryResult{Rows: [][]Value{{Int(1)}}, RowCount: 1, WasTruncated: true, TotalRows: &bad}
	if err := r2.Validate(); err == nil {
		t.Fatalf("expected error for total_rows <= row_count")
	}
}
