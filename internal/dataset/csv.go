package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteCSV exports the dataset as <dir>/<table>.csv with a header row of
// canonical column names. Row order is preserved.
func (d *Dataset) WriteCSV(dir string) (string, error) {
	path := filepath.Join(dir, d.Table.Name+".csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("csv export %s: %w", d.Table.Name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(d.Table.ColumnNames()); err != nil {
		return "", fmt.Errorf("csv export %s: header: %w", d.Table.Name, err)
	}

	field := make([]string, len(d.Table.Columns))
	for _, row := range d.Rows {
		for i, v := range row {
			field[i] = formatValue(v)
		}
		if err := w.Write(field); err != nil {
			return "", fmt.Errorf("csv export %s: %w", d.Table.Name, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("csv export %s: flush: %w", d.Table.Name, err)
	}
	return path, nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
