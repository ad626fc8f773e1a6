// Package transfer moves requirements in and out of the system as CSV.
// Export is a faithful dump; import recreates records but never edges, since
// edge endpoints get fresh identifiers on the way in.
package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"reqtrace/internal/requirement/models"
	dErrors "reqtrace/pkg/domain-errors"
	pstrings "reqtrace/pkg/platform/strings"
)

// Multi-valued cells (verification methods, edge id lists) are joined with a
// pipe so commas stay free for the CSV layer.
const listSeparator = "|"

var exportColumns = []string{
	"req_id",
	"title",
	"text",
	"status",
	"verification_methods",
	"project_id",
	"group_id",
	"chapter_id",
	"parent_ids",
	"child_ids",
}

// WriteCSV renders the requirement set with a header row.
func WriteCSV(w io.Writer, requirements []*models.Requirement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportColumns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range requirements {
		chapterID := ""
		if r.ChapterID != nil {
			chapterID = r.ChapterID.String()
		}
		parentIDs := make([]string, len(r.ParentIDs))
		for i, id := range r.ParentIDs {
			parentIDs[i] = id.String()
		}
		childIDs := make([]string, len(r.ChildIDs))
		for i, id := range r.ChildIDs {
			childIDs[i] = id.String()
		}
		record := []string{
			r.ReqID,
			r.Title,
			r.Text,
			string(r.Status),
			strings.Join(r.VerificationMethodStrings(), listSeparator),
			r.ProjectID.String(),
			r.GroupID.String(),
			chapterID,
			strings.Join(parentIDs, listSeparator),
			strings.Join(childIDs, listSeparator),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Row is one parsed import line. Line is the 1-based position in the file,
// header included, for error reporting. Err is set when the line was not
// parseable as CSV; such rows carry no cell values and fail individually.
type Row struct {
	Line                int
	Title               string
	Text                string
	Status              string
	VerificationMethods []string
	GroupID             string
	ChapterID           string
	Err                 error
}

// ReadCSV parses an import file. The header must name a title column; column
// order is free and unknown columns are ignored. Rows come back raw, to be
// validated one by one so a bad row never sinks the rest of the file.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "empty or unreadable CSV file")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["title"]; !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "CSV file must have a title column")
	}

	cell := func(record []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []Row
	line := 1
	for {
		record, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read csv")
			}
			rows = append(rows, Row{
				Line: line,
				Err:  dErrors.New(dErrors.CodeValidation, "malformed row"),
			})
			continue
		}

		row := Row{
			Line:      line,
			Title:     cell(record, "title"),
			Text:      cell(record, "text"),
			Status:    cell(record, "status"),
			GroupID:   cell(record, "group_id"),
			ChapterID: cell(record, "chapter_id"),
		}
		row.VerificationMethods = pstrings.SplitList(cell(record, "verification_methods"), listSeparator)
		rows = append(rows, row)
	}
	return rows, nil
}
