package schema

import (
	"strings"
	"testing"
)

func sampleSchema() Schema {
	return Schema{
		Tables: []Table{
			{
				Name: "orders",
				Columns: []Column{
					{Name: "id", DataType: "int4", IsNullable: false},
					{Name: "user_id", DataType: "int4", IsNullable: false},
				},
				PrimaryKey: []string{"id"},
			},
			{
				Name: "users",
				Columns: []Column{
					{Name: "id", DataType: "int4", IsNullable: false},
					{Name: "email", DataType: "text", IsNullable: true},
				},
				PrimaryKey: []string{"id"},
			},
		},
		ForeignKeys: []ForeignKey{
			{FromTable: "orders", FromColumns: []string{"user_id"}, ToTable: "users", ToColumns: []string{"id"}},
		},
	}
}

func TestContentHashStableUnderReordering(t *testing.T) {
	s1 := sampleSchema()
	s2 := sampleSchema()
	s2.Tables[0], s2.Tables[1] = s2.Tables[1], s2.Tables[0]

	if s1.ContentHash() != s2.ContentHash() {
		t.Fatalf("expected identical hash regardless of table order")
	}
}

func TestContentHashChangesOnStructuralChange(t *testing.T) {
	s1 := sampleSchema()
	s2 := sampleSchema()
	s2.Tables[0].Columns = append(s2.Tables[0].Columns, Column{Name: "total", DataType: "numeric"})

	if s1.ContentHash() == s2.ContentHash() {
		t.Fatalf("expected different hash after adding a column")
	}
}

func TestFormatForPromptAnnotatesPkAndFk(t *testing.T) {
	text := sampleSchema().FormatForPrompt()

	if !strings.Contains(text, "Table: orders") {
		t.Fatalf("missing table header: %s", text)
	}
	if !strings.Contains(text, "id: int4 (PK, NOT NULL)") {
		t.Fatalf("missing PK annotation: %s", text)
	}
	if !strings.Contains(text, "FK -> users.id") {
		t.Fatalf("missing FK annotation: %s", text)
	}
	if !strings.Contains(text, "Foreign Keys:") {
		t.Fatalf("missing foreign keys section: %s", text)
	}
}
