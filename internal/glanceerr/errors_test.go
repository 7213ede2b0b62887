package glanceerr

import (
	"errors"
	"testing"
)

func TestErrorDisplayConnection(t *testing.T) {
	err := ConnectionErr("Cannot connect to localhost:5432")
	if err.Error() != "Connection error: Cannot connect to localhost:5432" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if err.Category() != "Connection Error" {
		t.Fatalf("unexpected category: %s", err.Category())
	}
}

func TestErrorDisplayQuery(t *testing.T) {
	err := QueryErr(`column "emal" does not exist`)
	if err.Error() != `Query error: column "emal" does not exist` {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}

func TestErrorCategories(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{LlmErr("x"), "LLM Error"},
		{ConfigErr("x"), "Configuration Error"},
		{PersistenceErr("x"), "Persistence Error"},
		{InternalErr("x"), "Internal Error"},
	}
	for _, c := range cases {
		if c.err.Category() != c.want {
			t.Errorf("got %s want %s", c.err.Category(), c.want)
		}
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(Connection, "dial failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find cause")
	}
	var target *Error
	if !errors.As(err, &target) {
		t.Fatalf("expected errors.As to match *Error")
	}
}
