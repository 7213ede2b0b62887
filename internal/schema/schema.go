// Package schema models an introspected database schema and its rendering
// into the LLM-facing prompt text.
package schema

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
)

// Column describes one table column.
type Column struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    *string
}

// Index describes a non-primary-key index.
type Index struct {
	Name     string
	Columns  []string
	IsUnique bool
}

// Table describes one table's columns, primary key, and indexes.
type Table struct {
	Name       string
	Columns    []Column
	PrimaryKey []string
	Indexes    []Index
}

// ForeignKey describes a foreign key relationship with parallel column
// sequences (from_columns[i] references to_columns[i]).
type ForeignKey struct {
	FromTable   string
	FromColumns []string
	ToTable     string
	ToColumns   []string
}

// Schema is the full introspected shape of a database's public schema.
type Schema struct {
	Tables      []Table
	ForeignKeys []ForeignKey
}

// ContentHash returns a deterministic hash over the schema's structural
// content (table/column names, types, nullability, primary keys, foreign
// keys), independent of catalog row ordering, so two structurally-equal
// schemas from different introspection runs hash equal.
func (s Schema) ContentHash() uint64 {
	tables := make([]Table, len(s.Tables))
	copy(tables, s.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	var b strings.Builder
	for _, t := range tables {
		cols := make([]Column, len(t.Columns))
		copy(cols, t.Columns)
		sort.Slice(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })

		fmt.Fprintf(&b, "TABLE %s\n", t.Name)
		for _, c := range cols {
			def := ""
			if c.Default != nil {
				def = *c.Default
			}
			fmt.Fprintf(&b, "  COL %s %s null=%t def=%s\n", c.Name, c.DataType, c.IsNullable, def)
		}
		pk := append([]string(nil), t.PrimaryKey...)
		sort.Strings(pk)
		fmt.Fprintf(&b, "  PK %s\n", strings.Join(pk, ","))
	}

	fks := append([]ForeignKey(nil), s.ForeignKeys...)
	sort.Slice(fks, func(i, j int) bool {
		if fks[i].FromTable != fks[j].FromTable {
			return fks[i].FromTable < fks[j].FromTable
		}
		return fks[i].ToTable < fks[j].ToTable
	})
	for _, fk := range fks {
		fmt.Fprintf(&b, "FK %s(%s)->%s(%s)\n",
			fk.FromTable, strings.Join(fk.FromColumns, ","),
			fk.ToTable, strings.Join(fk.ToColumns, ","))
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(b.String()))
	return h.Sum64()
}

// FormatForPrompt renders the schema as the textual block the system
// prompt's {schema} slot expects: per-table "Table: <name>" followed by
// annotated columns, then a trailing Foreign Keys section.
func (s Schema) FormatForPrompt() string {
	fkByColumn := make(map[string]map[string]ForeignKey) // table -> column -> fk
	for _, fk := range s.ForeignKeys {
		if fkByColumn[fk.FromTable] == nil {
			fkByColumn[fk.FromTable] = make(map[string]ForeignKey)
		}
		for i, col := range fk.FromColumns {
			if i < len(fk.ToColumns) {
				fkByColumn[fk.FromTable][col] = ForeignKey{
					ToTable:   fk.ToTable,
					ToColumns: []string{fk.ToColumns[i]},
				}
			}
		}
	}

	isPK := func(t Table, col string) bool {
		for _, pk := range t.PrimaryKey {
			if pk == col {
				return true
			}
		}
		return false
	}

	var b strings.Builder
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		for _, c := range t.Columns {
			annotations := make([]string, 0, 2)
			if isPK(t, c.Name) {
				annotations = append(annotations, "PK")
			}
			if !c.IsNullable {
				annotations = append(annotations, "NOT NULL")
			}
			if fk, ok := fkByColumn[t.Name][c.Name]; ok {
				annotations = append(annotations, fmt.Sprintf("FK -> %s.%s", fk.ToTable, fk.ToColumns[0]))
			}
			suffix := ""
			if len(annotations) > 0 {
				suffix = " (" + strings.Join(annotations, ", ")
				if c.Default != nil {
					suffix += fmt.Sprintf(", DEFAULT %s", *c.Default)
				}
				suffix += ")"
			} else if c.Default != nil {
				suffix = fmt.Sprintf(" (DEFAULT %s)", *c.Default)
			}
			fmt.Fprintf(&b, "- %s: %s%s\n", c.Name, c.DataType, suffix)
		}
	}

	if len(s.ForeignKeys) > 0 {
		b.WriteString("Foreign Keys:\n")
		for _, fk := range s.ForeignKeys {
			fmt.Fprintf(&b, "- %s(%s) -> %s(%s)\n",
				fk.FromTable, strings.Join(fk.FromColumns, ", "),
				fk.ToTable, strings.Join(fk.ToColumns, ", "))
		}
	}

	return b.String()
}
