package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nosite-cli/internal/model"
)

const textReportHeader = "Businesses Without Websites (Classified by AI, Places API)"

// writeTextReport renders the result set as a human-readable numbered list.
// The file is written even when the result set is empty so a completed run
// always leaves both artifacts behind.
func writeTextReport(path string, results *model.ResultSet) error {
	var b strings.Builder
	b.WriteString(textReportHeader + "\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for i, rec := range results.Records() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rec.Name)
		fmt.Fprintf(&b, "   Google Maps: %s\n", rec.MapsURL)
		if rec.Reason != "" {
			fmt.Fprintf(&b, "   AI Analysis: %s\n", rec.Reason)
		}
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrap(err, "report: failed to write text report")
	}
	return nil
}

// writeCSVReport renders the result set as a three-column CSV with a header
// row. Records without an analysis get a placeholder so the column is never
// empty.
func writeCSVReport(path string, results *model.ResultSet) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: failed to create csv report")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Business Name", "Google Maps URL", "AI Analysis"}); err != nil {
		return eris.Wrap(err, "report: failed to write csv header")
	}

	for _, rec := range results.Records() {
		reason := rec.Reason
		if reason == "" {
			reason = "No analysis available"
		}
		if err := w.Write([]string{rec.Name, rec.MapsURL, reason}); err != nil {
			return eris.Wrap(err, "report: failed to write csv row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: failed to flush csv report")
	}
	return nil
}
