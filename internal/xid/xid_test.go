package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewHasPrefixAndValidUUID(t *testing.T) {
	id := New("sale")
	if !strings.HasPrefix(id, "sale_") {
		t.Fatalf("expected sale_ prefix, got %s", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "sale_")); err != nil {
		t.Fatalf("expected uuid suffix, got %s: %v", id, err)
	}
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := New("prd")
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
}
