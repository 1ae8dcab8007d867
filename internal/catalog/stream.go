package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// StreamCSV reads CSV records and sends them to a channel. Fields are
// trimmed, '#' starts a comment line and a UTF-8 byte order mark on the
// first field is dropped. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.Comment = '#'
		reader.LazyQuotes = true
		reader.FieldsPerRecord = -1

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
			if first && len(record) > 0 {
				record[0] = strings.TrimPrefix(record[0], "\ufeff")
			}
			first = false

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadXLSX returns every row of the first sheet as trimmed strings.
func ReadXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("xlsx: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// recordReader adapts a source of rows to the csvutil reader interface and
// counts the records handed out, so callers can report line numbers.
type recordReader struct {
	next  func() ([]string, error)
	width int // rows shorter than width are padded
	line  int
	err   error
}

func (r *recordReader) Read() ([]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	rec, err := r.next()
	if err != nil {
		r.err = err
		return nil, err
	}
	r.line++
	for r.width > 0 && len(rec) < r.width {
		rec = append(rec, "")
	}
	return rec, nil
}

// channelRows reads from StreamCSV's channels until both are drained.
func channelRows(rowCh <-chan []string, errCh <-chan error) func() ([]string, error) {
	return func() ([]string, error) {
		if row, ok := <-rowCh; ok {
			return row, nil
		}
		if err, ok := <-errCh; ok && err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
}

// sliceRows serves rows already in memory.
func sliceRows(rows [][]string) func() ([]string, error) {
	i := 0
	return func() ([]string, error) {
		if i >= len(rows) {
			return nil, io.EOF
		}
		i++
		return rows[i-1], nil
	}
}
