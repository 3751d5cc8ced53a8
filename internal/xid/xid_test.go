package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewUsesPrefixAndUUID(t *testing.T) {
	id := New("sale")
	if !strings.HasPrefix(id, "sale-") {
		t.Fatalf("expected sale- prefix, got %s", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "sale-")); err != nil {
		t.Fatalf("expected uuid suffix, got %s: %v", id, err)
	}
	if New("sale") == id {
		t.Fatalf("expected unique ids")
	}
}
