package receipt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateWritesReceiptPDF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	generator, err := NewGenerator(dir)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	fileName, err := generator.Generate(Purchase{
		Email:    "buyer@example.com",
		FullName: "Buyer Person",
		Credits:  10,
		IssuedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("generate receipt: %v", err)
	}

	if !strings.HasPrefix(fileName, "receipt_") || !strings.HasSuffix(fileName, ".pdf") {
		t.Fatalf("unexpected receipt file name: %q", fileName)
	}

	info, err := os.Stat(filepath.Join(dir, fileName))
	if err != nil {
		t.Fatalf("stat receipt file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty receipt file")
	}
}

func TestGenerateRejectsInvalidCredits(t *testing.T) {
	t.Parallel()

	generator, err := NewGenerator(t.TempDir())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	if _, err := generator.Generate(Purchase{Email: "x@example.com", Credits: 0}); err == nil {
		t.Fatalf("expected error for zero credits")
	}
}

func TestNewGeneratorRequiresDirectory(t *testing.T) {
	t.Parallel()

	if _, err := NewGenerator("  "); err == nil {
		t.Fatalf("expected error for blank directory")
	}
}
