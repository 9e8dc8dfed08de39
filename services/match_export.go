package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Dosada05/tennis-tournament/models"
)

// MatchExporter renders a list of matches in one file format.
type MatchExporter interface {
	Export(w io.Writer, matches []models.Match) error
	ContentType() string
	Extension() string
}

var exportHeader = []string{"id", "name", "location", "date", "referee_id", "player1_id", "player2_id", "player1_score", "player2_score"}

// ExporterFor picks the exporter registered for format.
func ExporterFor(format models.ExportFormat) (MatchExporter, error) {
	switch format {
	case models.ExportCSV:
		return csvExporter{}, nil
	case models.ExportTXT:
		return textExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type csvExporter struct{}

func (csvExporter) ContentType() string { return "text/csv; charset=utf-8" }
func (csvExporter) Extension() string   { return "csv" }

func (csvExporter) Export(w io.Writer, matches []models.Match) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, m := range matches {
		if err := cw.Write(exportRow(m)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type textExporter struct{}

func (textExporter) ContentType() string { return "text/plain; charset=utf-8" }
func (textExporter) Extension() string   { return "txt" }

func (textExporter) Export(w io.Writer, matches []models.Match) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeLine := func(fields []string) error {
		for i, f := range fields {
			if i > 0 {
				if _, err := io.WriteString(tw, "\t"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(tw, f); err != nil {
				return err
			}
		}
		_, err := io.WriteString(tw, "\n")
		return err
	}

	if err := writeLine(exportHeader); err != nil {
		return err
	}
	for _, m := range matches {
		if err := writeLine(exportRow(m)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func exportRow(m models.Match) []string {
	return []string{
		strconv.Itoa(m.ID),
		m.Name,
		m.Location,
		m.Date.UTC().Format(time.RFC3339),
		strconv.Itoa(m.RefereeID),
		optionalID(m.Player1ID),
		optionalID(m.Player2ID),
		strconv.Itoa(m.Player1Score),
		strconv.Itoa(m.Player2Score),
	}
}

func optionalID(id *int) string {
	if id == nil {
		return ""
	}
	return strconv.Itoa(*id)
}
