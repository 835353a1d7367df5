package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"snigexport/pkg/arcgis"
)

// ExportTable exports one attribute-only layer to a CSV artifact. Pages
// are accumulated in memory; tabular sources are small relative to the
// spatial layers, so no checkpointing is done and a restart starts over.
// Returns the number of rows written.
func (e *Exporter) ExportTable(layer Layer) (int, error) {
	log := e.logger.WithFields(map[string]interface{}{
		"layer": layer.ID,
		"name":  layer.Name,
	})
	log.Info("exporting table")

	pageSize := e.cfg.Export.PageSize
	var rows []arcgis.Attributes
	offset := 0
	for {
		page, err := e.client.QueryPage(layer.ID, arcgis.PageQuery{
			Where:     "1=1",
			OutFields: "*",
			OrderBy:   "OBJECTID ASC",
			Offset:    offset,
			Count:     pageSize,
		})
		if err != nil {
			return 0, err
		}

		for _, feature := range page.Features {
			rows = append(rows, feature.Attributes)
		}

		got := len(page.Features)
		log.WithField("rows", offset+got).Debug("page fetched")
		if got < pageSize {
			break
		}
		offset += pageSize
	}

	outPath := filepath.Join(e.cfg.Export.OutputDir, layer.Name+".csv")
	if err := writeTableCSV(outPath, rows); err != nil {
		return 0, err
	}

	log.InfoWithFields("table exported", map[string]interface{}{
		"path": outPath,
		"rows": len(rows),
	})
	return len(rows), nil
}

// writeTableCSV writes rows with a header derived as the sorted union of
// all observed attribute keys; the schema is not assumed fixed across
// rows. Zero rows produce an empty artifact rather than an error.
func writeTableCSV(path string, rows []arcgis.Attributes) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	if len(rows) == 0 {
		return out.Close()
	}

	keys := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			keys[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		out.Close()
		return err
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i, key := range header {
			value, ok := row[key]
			if !ok {
				record[i] = ""
				continue
			}
			record[i] = formatValue(value)
		}
		if err := w.Write(record); err != nil {
			out.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// formatValue renders one attribute value for CSV output. JSON numbers
// decode as float64; integral values are printed without a decimal part.
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
