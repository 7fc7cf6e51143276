package marks

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	ErrRecordNotFound    = errors.New("no marks record for this id")
	ErrUnsupportedFormat = errors.New("unsupported marks file format")
)

// Number of columns in the marks sheet: id, name, gsuite, section, marks
const columns = 5

type Record struct {
	Id      string
	Name    string
	GSuite  string
	Section string
	Marks   string
}

// A source returns all the rows of a table, header included.
// Sources are read again on every call, so the underlying
// file may change while the bot is running
type Source interface {
	Rows(ctx context.Context) ([][]string, error)
}

// Open a source depending on the extension of the file
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("could not access marks file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ExcelSource{Path: path}, nil
	case ".csv":
		return CSVSource{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Reads the first sheet of a workbook
type ExcelSource struct {
	Path string
}

func (source ExcelSource) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(source.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open workbook %s: %w", source.Path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Debug().Err(err).Msgf("Could not close workbook %s", source.Path)
		}
	}()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("could not read sheet %s of %s: %w", sheet, source.Path, err)
	}
	return rows, nil
}

type CSVSource struct {
	Path string
}

func (source CSVSource) Rows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(source.Path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", source.Path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	// Rows may have a different number of cells
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", source.Path, err)
	}
	return rows, nil
}

// Find the row whose first column is exactly the provided id.
// The first row is the header and is never matched
func Find(ctx context.Context, source Source, id string) (Record, error) {

	rows, err := source.Rows(ctx)
	if err != nil {
		return Record{}, err
	}
	if len(rows) > 0 {
		rows = rows[1:]
	}

	for _, row := range rows {
		if len(row) == 0 || row[0] != id {
			continue
		}
		cells := make([]string, columns)
		for i := 0; i < columns && i < len(row); i++ {
			cells[i] = row[i]
		}
		return Record{
			Id:      cells[0],
			Name:    cells[1],
			GSuite:  cells[2],
			Section: cells[3],
			Marks:   cells[4],
		}, nil
	}

	log.Debug().Msgf("No marks row found for id %s", id)
	return Record{}, ErrRecordNotFound
}
