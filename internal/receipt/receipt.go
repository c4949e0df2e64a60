package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

// Generator writes PDF purchase receipts into a configured directory.
type Generator struct {
	dir string
}

func NewGenerator(dir string) (*Generator, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("receipt directory is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt directory: %w", err)
	}
	return &Generator{dir: trimmed}, nil
}

// Purchase describes one credit purchase to be receipted.
type Purchase struct {
	Email    string
	FullName string
	Credits  int
	IssuedAt time.Time
}

// Generate renders the receipt PDF and returns its file name.
func (g *Generator) Generate(purchase Purchase) (string, error) {
	if g == nil {
		return "", fmt.Errorf("receipt generator is not initialized")
	}
	if purchase.Credits < 1 {
		return "", fmt.Errorf("credits must be >= 1")
	}

	issuedAt := purchase.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now().UTC()
	}

	name := strings.TrimSpace(purchase.FullName)
	if name == "" {
		name = strings.TrimSpace(purchase.Email)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Parrot Translation Credits")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Receipt date: %s", issuedAt.UTC().Format("2006-01-02 15:04 UTC")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Billed to: %s", name))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Account: %s", strings.TrimSpace(purchase.Email)))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Translation credits purchased: %d", purchase.Credits))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Thank you for your purchase.")

	fileName := fmt.Sprintf("receipt_%s.pdf", uuid.NewString())
	if err := pdf.OutputFileAndClose(filepath.Join(g.dir, fileName)); err != nil {
		return "", fmt.Errorf("write receipt PDF: %w", err)
	}
	return fileName, nil
}
