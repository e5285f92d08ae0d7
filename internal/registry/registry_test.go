package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppoox/2025-dos-ideatone-data-verify-ai-agent/internal/domain"
)

func testDomains() []domain.DomainDescriptor {
	return []domain.DomainDescriptor{
		{Name: "billing", Schema: "billing", ConnectionURI: "postgres://billing-db/app", Description: "invoices and payments"},
		{Name: "customer", Schema: "crm"},
	}
}

func TestResolve(t *testing.T) {
	gw := domain.GatewayConfig{
		DefaultConnectionURI: "postgres://default-db/app",
		DefaultSchema:        "public",
	}

	reg, err := New(gw, testDomains())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("NamedDomain", func(t *testing.T) {
		d, err := reg.Resolve("billing")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if d.Schema != "billing" {
			t.Errorf("expected schema 'billing', got %q", d.Schema)
		}
		if d.ConnectionURI != "postgres://billing-db/app" {
			t.Errorf("unexpected connection: %q", d.ConnectionURI)
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		d, err := reg.Resolve("BILLING")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if d.Name != "billing" {
			t.Errorf("expected 'billing', got %q", d.Name)
		}
	})

	t.Run("ConnectionFallback", func(t *testing.T) {
		d, err := reg.Resolve("customer")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if d.ConnectionURI != gw.DefaultConnectionURI {
			t.Errorf("expected default connection, got %q", d.ConnectionURI)
		}
	})

	t.Run("UnknownDomain", func(t *testing.T) {
		_, err := reg.Resolve("nonexistent")
		if !errors.Is(err, domain.ErrUnknownDomain) {
			t.Fatalf("expected ErrUnknownDomain, got %v", err)
		}
	})

	t.Run("SyntheticDefault", func(t *testing.T) {
		d, err := reg.Resolve("")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if d.Name != "default" || d.Schema != "public" {
			t.Errorf("expected synthetic default with schema 'public', got %+v", d)
		}
		if d.ConnectionURI != gw.DefaultConnectionURI {
			t.Errorf("expected default connection, got %q", d.ConnectionURI)
		}
	})
}

func TestResolveWithoutDefaultConnection(t *testing.T) {
	gw := domain.GatewayConfig{DefaultSchema: "public"}
	domains := []domain.DomainDescriptor{
		{Name: "usage", Schema: "usage", ConnectionURI: "postgres://usage-db/app"},
		{Name: "billing", Schema: "billing", ConnectionURI: "postgres://billing-db/app"},
	}

	reg, err := New(gw, domains)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	t.Run("FirstDomainByName", func(t *testing.T) {
		d, err := reg.Resolve("")
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if d.Name != "billing" {
			t.Errorf("expected lexicographically first domain 'billing', got %q", d.Name)
		}
	})

	t.Run("NoDomainsAtAll", func(t *testing.T) {
		empty, err := New(gw, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		_, err = empty.Resolve("")
		if !errors.Is(err, domain.ErrNoDefaultDomain) {
			t.Fatalf("expected ErrNoDefaultDomain, got %v", err)
		}
	})
}

func TestNewValidation(t *testing.T) {
	gw := domain.GatewayConfig{DefaultSchema: "public"}

	t.Run("DuplicateNames", func(t *testing.T) {
		_, err := New(gw, []domain.DomainDescriptor{
			{Name: "billing", Schema: "a", ConnectionURI: "postgres://x"},
			{Name: "Billing", Schema: "b", ConnectionURI: "postgres://y"},
		})
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
		}
	})

	t.Run("MissingSchema", func(t *testing.T) {
		_, err := New(gw, []domain.DomainDescriptor{
			{Name: "billing", ConnectionURI: "postgres://x"},
		})
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
		}
	})

	t.Run("NoConnectionAnywhere", func(t *testing.T) {
		_, err := New(gw, []domain.DomainDescriptor{
			{Name: "billing", Schema: "billing"},
		})
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
		}
	})
}

func TestDescribe(t *testing.T) {
	t.Run("SortedWithDescriptions", func(t *testing.T) {
		gw := domain.GatewayConfig{DefaultConnectionURI: "postgres://d", DefaultSchema: "public"}
		reg, err := New(gw, testDomains())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		text := reg.Describe()
		lines := strings.Split(text, "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header plus 2 lines, got %d: %q", len(lines), text)
		}
		if !strings.Contains(lines[1], "billing") || !strings.Contains(lines[2], "customer") {
			t.Errorf("domains not sorted by name: %q", text)
		}
		if !strings.Contains(lines[1], "invoices and payments") {
			t.Errorf("description missing: %q", lines[1])
		}
	})

	t.Run("DefaultConnectionOnly", func(t *testing.T) {
		gw := domain.GatewayConfig{DefaultConnectionURI: "postgres://d", DefaultSchema: "reporting"}
		reg, err := New(gw, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		text := reg.Describe()
		if !strings.Contains(text, "- default: schema `reporting`") {
			t.Errorf("expected default line, got %q", text)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		reg, err := New(domain.GatewayConfig{DefaultSchema: "public"}, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if text := reg.Describe(); text != "" {
			t.Errorf("expected empty description, got %q", text)
		}
	})
}
