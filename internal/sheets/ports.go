package sheets

import (
	"context"

	"tally/internal/reports"
)

// Ports for outbound adapters.
type (
	// ReportExporter publishes a generated report to an external spreadsheet.
	ReportExporter interface {
		ExportReport(ctx context.Context, out reports.Output) error
	}
)
