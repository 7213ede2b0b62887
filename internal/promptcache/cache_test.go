package promptcache

import (
	"strings"
	"testing"

	"github.com/glance-db/glance/internal/schema"
)

func sampleSchema() schema.Schema {
	return schema.Schema{Tables: []schema.Table{{Name: "users", Columns: []schema.Column{{Name: "id", DataType: "int4"}}}}}
}

func TestGetOrBuildSameKeyReturnsSamePointer(t *testing.T) {
	c := New()
	s := sampleSchema()
	ctx := ConnectionContext{Label: "prod", Database: "app"}

	p1 := c.GetOrBuild(s, ctx)
	p2 := c.GetOrBuild(s, ctx)
	if p1 != p2 {
		t.Fatalf("expected identical pointer on cache hit")
	}
}

func TestGetOrBuildDifferentContextRebuilds(t *testing.T) {
	c := New()
	s := sampleSchema()
	p1 := c.GetOrBuild(s, ConnectionContext{Label: "a"})
	p2 := c.GetOrBuild(s, ConnectionContext{Label: "b"})
	if p1 == p2 {
		t.Fatalf("expected distinct pointers for distinct connection contexts")
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	c := New()
	s := sampleSchema()
	ctx := ConnectionContext{Label: "prod"}
	p1 := c.GetOrBuild(s, ctx)
	c.Invalidate()
	p2 := c.GetOrBuild(s, ctx)
	if p1 == p2 {
		t.Fatalf("expected new pointer after Invalidate")
	}
}

func TestExpandOmitsPrivacyFields(t *testing.T) {
	ctx := ConnectionContext{Label: "prod", Database: "mydb"}
	rendered := ctx.Expand()
	if rendered != "Connection: prod (database: mydb)" {
		t.Fatalf("got %q", rendered)
	}
	if strings.Contains(rendered, "password") || strings.Contains(rendered, "host=") || strings.Contains(rendered, "user=") {
		t.Fatalf("leaked sensitive field: %q", rendered)
	}
}

func TestExpandDatabaseOnly(t *testing.T) {
	if got := (ConnectionContext{Database: "mydb"}).Expand(); got != "Database: mydb" {
		t.Fatalf("got %q", got)
	}
}

func TestExpandEmpty(t *testing.T) {
	if got := (ConnectionContext{}).Expand(); got != "" {
		t.Fatalf("got %q", got)
	}
}
