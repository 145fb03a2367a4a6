package notification

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return path
}

func TestTemplateRenderer_Render(t *testing.T) {
	path := writeTemplate(t, "Voucher [VoucherCode] for [VoucherValue] issued.")
	renderer := NewTemplateRenderer()

	rendered, err := renderer.Render(path, map[string]string{
		"VoucherCode":  "1234567890",
		"VoucherValue": "25.00",
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "Voucher 1234567890 for 25.00 issued."
	if rendered != want {
		t.Errorf("Expected %q, got %q", want, rendered)
	}
}

func TestTemplateRenderer_UnknownTokenLeftIntact(t *testing.T) {
	path := writeTemplate(t, "Hello [Unknown], code [VoucherCode].")
	renderer := NewTemplateRenderer()

	rendered, err := renderer.Render(path, map[string]string{"VoucherCode": "42"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := "Hello [Unknown], code 42."
	if rendered != want {
		t.Errorf("Expected unknown tokens untouched, got %q", rendered)
	}
}

func TestTemplateRenderer_CaseSensitive(t *testing.T) {
	path := writeTemplate(t, "[vouchercode] [VoucherCode]")
	renderer := NewTemplateRenderer()

	rendered, err := renderer.Render(path, map[string]string{"VoucherCode": "42"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rendered != "[vouchercode] 42" {
		t.Errorf("Expected case sensitive substitution, got %q", rendered)
	}
}

func TestTemplateRenderer_RepeatedToken(t *testing.T) {
	path := writeTemplate(t, "[VoucherCode] and again [VoucherCode]")
	renderer := NewTemplateRenderer()

	rendered, err := renderer.Render(path, map[string]string{"VoucherCode": "42"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rendered != "42 and again 42" {
		t.Errorf("Expected all occurrences replaced, got %q", rendered)
	}
}

func TestTemplateRenderer_MissingFile(t *testing.T) {
	renderer := NewTemplateRenderer()
	if _, err := renderer.Render(filepath.Join(t.TempDir(), "missing.txt"), nil); err == nil {
		t.Fatal("Expected error for missing template")
	}
}
