// Package export writes fetched post metadata to a spreadsheet or JSON file.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	errs "douyindl/pkg/errors"
	"douyindl/pkg/logger"
	"douyindl/pkg/metadata"
	"douyindl/pkg/naming"
)

const (
	// SheetName is the worksheet holding one row per post
	SheetName = "Posts"
	// Dir is the export directory inside a user folder
	Dir = "export"

	FormatXLSX = "xlsx"
	FormatJSON = "json"

	defaultSheet = "Sheet1"
)

// Headers are the spreadsheet columns in order
var Headers = []string{
	"Type", "Published", "Caption", "Collection",
	"Likes", "Comments", "Favorites", "Shares", "Recommends",
	"Duration", "Link",
}

var columnWidths = []float64{8, 20, 60, 24, 10, 10, 10, 10, 12, 10, 48}

// Exporter renders metadata rows
type Exporter struct {
	location *time.Location
	logger   logger.Logger
}

// New creates an exporter rendering timestamps in loc (local time when nil)
func New(loc *time.Location, log logger.Logger) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{location: loc, logger: log}
}

// Path returns {userFolder}/export/{nickname}.{format}
func Path(userFolder, nickname, format string) string {
	name := naming.Sanitize(nickname, naming.FileNameMax)
	return filepath.Join(userFolder, Dir, name+"."+normalizeFormat(format))
}

func normalizeFormat(format string) string {
	if strings.EqualFold(format, FormatJSON) {
		return FormatJSON
	}
	return FormatXLSX
}

// Export writes rows for a user in the given format and returns the file path
func (e *Exporter) Export(userFolder, nickname, format string, rows []*metadata.PostMetadata) (string, error) {
	path := Path(userFolder, nickname, format)

	var err error
	if normalizeFormat(format) == FormatJSON {
		err = metadata.Save(path, rows)
		if err != nil {
			err = errs.Export(path, err)
		}
	} else {
		err = e.WriteXLSX(path, rows)
	}
	if err != nil {
		return "", err
	}

	videos, notes := metadata.Summary(rows)
	e.logger.InfoWithFields("Exported post metadata", map[string]interface{}{
		"path":   path,
		"rows":   len(rows),
		"videos": videos,
		"notes":  notes,
	})
	return path, nil
}

// Row renders one post as spreadsheet cell values
func (e *Exporter) Row(m *metadata.PostMetadata) []interface{} {
	return []interface{}{
		m.Type,
		m.FormattedPublished(e.location),
		m.Caption,
		m.Collection,
		m.Likes,
		m.Comments,
		m.Favorites,
		m.Shares,
		m.Recommends,
		m.FormattedDuration(),
		m.Link,
	}
}

// WriteXLSX writes rows to a workbook with a single Posts sheet
func (e *Exporter) WriteXLSX(path string, rows []*metadata.PostMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Export(path, err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(defaultSheet, SheetName); err != nil {
		return errs.Export(path, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return errs.Export(path, err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return errs.Export(path, err)
	}

	for i, w := range columnWidths {
		if err := sw.SetColWidth(i+1, i+1, w); err != nil {
			return errs.Export(path, err)
		}
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return errs.Export(path, err)
	}

	for i, m := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errs.Export(path, err)
		}
		if err := sw.SetRow(cell, e.Row(m)); err != nil {
			return errs.Export(path, fmt.Errorf("row %d: %w", i+2, err))
		}
	}

	if err := sw.Flush(); err != nil {
		return errs.Export(path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return errs.Export(path, err)
	}
	return nil
}
