package renewals

import (
	"context"
	"fmt"
	"time"

	"github.com/wecare-insurance/portal/internal/records"
)

// PDFRenderer converts an HTML document to PDF.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// HTMLRenderer executes a named template into a string.
type HTMLRenderer interface {
	RenderHTML(name string, data any) (string, error)
}

// CallSheet is the printable call list.
type CallSheet struct {
	GeneratedAt time.Time
	Summary     Summary
	Rows        []Row
}

// CallSheetFilename names the download for a day.
func CallSheetFilename(day time.Time) string {
	return fmt.Sprintf("WeCare_Renewal_Calls_%s.pdf", day.Format(records.DateLayout))
}

// BuildCallSheet keeps only the customers still to be called, most urgent
// first as returned by the API.
func BuildCallSheet(recs []records.Record, now time.Time, windowDays int) CallSheet {
	sheet := CallSheet{GeneratedAt: now, Summary: Summarize(recs, now, windowDays)}
	for _, row := range Rows(recs, now) {
		if !row.RenewalNotified {
			sheet.Rows = append(sheet.Rows, row)
		}
	}
	return sheet
}

// RenderCallSheet renders the sheet to PDF bytes.
func RenderCallSheet(ctx context.Context, html HTMLRenderer, pdf PDFRenderer, sheet CallSheet) ([]byte, error) {
	doc, err := html.RenderHTML("documents/callsheet.html", sheet)
	if err != nil {
		return nil, fmt.Errorf("render call sheet html: %w", err)
	}
	out, err := pdf.RenderHTML(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("convert call sheet: %w", err)
	}
	return out, nil
}
