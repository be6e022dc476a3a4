package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spec-kit/ticket-routing/internal/domain"
)

func TestDefaultTable(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	tests := []struct {
		category, subcategory string
		want                  domain.TicketPriority
	}{
		{"billing", "payment-failed", domain.TicketPriorityHigh},
		{"Billing", " Refund-Request ", domain.TicketPriorityMedium},
		{"general", "feedback", domain.TicketPriorityLow},
	}
	for _, tt := range tests {
		got, ok := c.Lookup(tt.category, tt.subcategory)
		if !ok || got != tt.want {
			t.Errorf("Lookup(%q, %q) = %q, %v; want %q", tt.category, tt.subcategory, got, ok, tt.want)
		}
	}
	if _, ok := c.Lookup("billing", "nonsense"); ok {
		t.Fatal("unknown subcategory resolved")
	}
	if _, ok := c.Lookup("nonsense", "feedback"); ok {
		t.Fatal("unknown category resolved")
	}
}

func TestParseRejectsBadPriority(t *testing.T) {
	raw := []byte("categories:\n  billing:\n    refund: urgent\n")
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for unknown priority")
	}
	if _, err := Parse([]byte("categories: {}\n")); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "priorities.yaml")
	raw := []byte("categories:\n  hardware:\n    broken-screen: high\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p, ok := c.Lookup("hardware", "broken-screen"); !ok || p != domain.TicketPriorityHigh {
		t.Fatalf("Lookup = %q, %v", p, ok)
	}
	if got := c.Categories(); len(got) != 1 || got[0] != "hardware" {
		t.Fatalf("Categories = %v", got)
	}
}
