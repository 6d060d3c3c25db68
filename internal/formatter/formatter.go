// package formatter exports set progress to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/binder/internal/catalog"
	"github.com/desertthunder/binder/internal/models"
	"github.com/desertthunder/binder/internal/progress"
	"github.com/desertthunder/binder/internal/shared"
)

// VariantState is one variant of a card and whether it is collected.
type VariantState struct {
	Name      string `json:"name"`
	Collected bool   `json:"collected"`
}

// CardRow is a card with the state of each applicable variant.
type CardRow struct {
	Card     models.Card    `json:"card"`
	Variants []VariantState `json:"variants"`
	Complete bool           `json:"complete"`
}

// SetExport is a snapshot of one set's progress.
type SetExport struct {
	Set   *models.Set    `json:"set"`
	Stats progress.Stats `json:"stats"`
	Rows  []CardRow      `json:"rows"`
}

// BuildSetExport reads the state of every card in set from store.
func BuildSetExport(set *models.Set, store *progress.Store) *SetExport {
	scope := set.Scope()
	export := &SetExport{Set: set, Rows: make([]CardRow, 0, len(set.Cards))}
	cards := make([]progress.CardVariants, 0, len(set.Cards))

	for _, card := range set.Cards {
		variants := catalog.Variants(set, card)
		cards = append(cards, progress.CardVariants{Card: card.Number, Variants: variants})

		row := CardRow{Card: card, Complete: true}
		for _, v := range variants {
			got := store.Get(scope, card.Number, v)
			row.Variants = append(row.Variants, VariantState{Name: v, Collected: got})
			row.Complete = row.Complete && got
		}
		export.Rows = append(export.Rows, row)
	}

	export.Stats = store.Stats(scope, cards)
	return export
}

// ExportToCSV writes one row per card variant with columns: Number, Name, Rarity, Variant, Collected
func ExportToCSV(export *SetExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Number", "Name", "Rarity", "Variant", "Collected"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range export.Rows {
		for _, v := range row.Variants {
			record := []string{
				row.Card.Number,
				row.Card.Name,
				row.Card.Rarity,
				v.Name,
				yesNo(v.Collected),
			}
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a checklist for the set with an optional logo image
func ExportToMarkdown(export *SetExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", export.Set.Title()))

	if imageFilename != "" {
		buf.WriteString(fmt.Sprintf("![Logo](%s)\n\n", imageFilename))
	}

	if export.Set.Description != "" {
		buf.WriteString(fmt.Sprintf("**Description**: %s\n\n", export.Set.Description))
	}

	buf.WriteString(fmt.Sprintf("**Cards**: %d\n", len(export.Rows)))
	buf.WriteString(fmt.Sprintf("**Progress**: %s\n", export.Stats))
	buf.WriteString(fmt.Sprintf("**Complete cards**: %d/%d\n\n", export.Stats.CompleteCards, export.Stats.TotalCards))

	buf.WriteString("## Cards\n\n")
	for _, row := range export.Rows {
		check := " "
		if row.Complete {
			check = "x"
		}
		buf.WriteString(fmt.Sprintf("- [%s] #%s %s (%s)\n", check, row.Card.Number, row.Card.Name, variantSummary(row.Variants)))
	}

	return buf.Bytes(), nil
}

// ExportToText renders a plain listing of the set
func ExportToText(export *SetExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Set: %s\n", export.Set.Title()))
	buf.WriteString(fmt.Sprintf("Progress: %s\n\n", export.Stats))

	for _, row := range export.Rows {
		buf.WriteString(fmt.Sprintf("%s. %s [%s]\n", row.Card.Number, row.Card.Name, variantSummary(row.Variants)))
	}

	return buf.Bytes(), nil
}

func variantSummary(variants []VariantState) string {
	parts := make([]string, 0, len(variants))
	for _, v := range variants {
		mark := "✗"
		if v.Collected {
			mark = "✓"
		}
		parts = append(parts, v.Name+" "+mark)
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ToJSON encodes progress as indented JSON.
func ToJSON(p models.Progress) ([]byte, error) {
	if p == nil {
		p = models.Progress{}
	}
	return shared.MarshalJSON(p, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL provided", shared.ErrInvalidInput)
	}

	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: failed to download image: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	CardsFile string
	StatsFile string
}

// WriteCSVExport exports a set to CSV with an accompanying stats JSON file.
//
// Defaults to the set's scope as the base filename & creates {base}_cards.csv and {base}_stats.json
func WriteCSVExport(export *SetExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Set.Scope()
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	cardsFile := baseFilepath + "_cards.csv"
	if err := os.WriteFile(cardsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	statsJSON, err := shared.MarshalJSON(export.Stats, true)
	if err != nil {
		return nil, fmt.Errorf("failed to generate stats JSON: %w", err)
	}

	statsFile := baseFilepath + "_stats.json"
	if err := os.WriteFile(statsFile, statsJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write stats file: %w", err)
	}

	return &CSVExportResult{CardsFile: cardsFile, StatsFile: statsFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Image     string
	// ImageErr is set when the image could not be downloaded or saved. The export still succeeds.
	ImageErr error
}

// WriteMarkdownExport exports a set to Markdown in a dedicated directory.
//
// Directory name defaults to the set's scope. imageURL is optional. When given, the image is downloaded next to
// the README as image.png.
func WriteMarkdownExport(ctx context.Context, export *SetExport, outputDir, imageURL string, client *http.Client) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Set.Scope()
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}

	var imageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(ctx, client, imageURL)
		if err != nil {
			result.ImageErr = err
		} else {
			imagePath := filepath.Join(outputDir, "image.png")
			if err := os.WriteFile(imagePath, imageData, 0644); err != nil {
				result.ImageErr = fmt.Errorf("failed to save image: %w", err)
			} else {
				imageFilename = "image.png"
				result.Image = imagePath
				result.Files = append(result.Files, imagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(export, imageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

// WriteTextExport exports a set to plain text.
//
// Defaults to {scope}_cards.txt as the filename.
func WriteTextExport(export *SetExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_cards.txt", export.Set.Scope())
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
