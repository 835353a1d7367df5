package export

import (
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"snigexport/pkg/arcgis"
)

const (
	// parcelLayerID is the Catastro Rural y Urbano layer
	parcelLayerID = 1
	parcelFields  = "CodDepartamento,NroPadron,DeptoPadron,codLocCat,nomLocCat"
	parcelOrder   = "CodDepartamento ASC,NroPadron ASC"
)

var parcelHeader = []string{
	"cod_departamento", "nro_padron", "depto_padron", "cod_localidad", "nombre_localidad",
}

// Parcel is one streamed parcel-number record
type Parcel struct {
	Department   int64
	Number       int64
	Label        string
	LocalityCode string
	LocalityName string
}

// parcelKey identifies a parcel across page boundaries
type parcelKey struct {
	department int64
	number     int64
}

// ParcelFilter narrows the parcel stream by department and locality
type ParcelFilter struct {
	// Department code 1..19; zero means all departments
	Department int
	// Locality is the cadastral locality code; requires Department
	Locality string
}

// Validate checks the filter combination
func (f ParcelFilter) Validate() error {
	if f.Department != 0 && (f.Department < 1 || f.Department > 19) {
		return fmt.Errorf("department code must be between 1 and 19, got %d", f.Department)
	}
	if f.Locality != "" && f.Department == 0 {
		return fmt.Errorf("filtering by locality requires a department")
	}
	return nil
}

// Where builds the filter expression. Records with a null parcel number
// are excluded up front; they carry no usable identity.
func (f ParcelFilter) Where() string {
	where := "NroPadron IS NOT NULL"
	if f.Department != 0 {
		where += fmt.Sprintf(" AND CodDepartamento = %d", f.Department)
	}
	if f.Locality != "" {
		where += fmt.Sprintf(" AND codLocCat = '%s'", f.Locality)
	}
	return where
}

// Suffix names the output file after the filter
func (f ParcelFilter) Suffix() string {
	var parts []string
	if f.Department != 0 {
		parts = append(parts, fmt.Sprintf("depto_%d", f.Department))
	}
	if f.Locality != "" {
		parts = append(parts, fmt.Sprintf("loc_%s", f.Locality))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, "_")
}

// StreamParcels walks the parcel layer page by page, yielding each parcel
// lazily. The service occasionally returns overlapping rows near page
// boundaries when ordering on non-unique keys, so records are deduplicated
// by (department, parcel number) within the session; records whose
// identifier attributes are null are silently discarded. The seen-set
// grows with the number of distinct records, which is acceptable for the
// filter-scoped queries this path serves.
func (e *Exporter) StreamParcels(where string) iter.Seq2[Parcel, error] {
	return func(yield func(Parcel, error) bool) {
		pageSize := e.cfg.Export.PageSize
		seen := make(map[parcelKey]struct{})
		offset := 0

		for {
			page, err := e.client.QueryPageForm(parcelLayerID, arcgis.PageQuery{
				Where:     where,
				OutFields: parcelFields,
				OrderBy:   parcelOrder,
				Offset:    offset,
				Count:     pageSize,
			})
			if err != nil {
				yield(Parcel{}, err)
				return
			}

			if len(page.Features) == 0 {
				return
			}

			for _, feature := range page.Features {
				parcel, ok := parcelFromAttributes(feature.Attributes)
				if !ok {
					continue
				}
				key := parcelKey{parcel.Department, parcel.Number}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				if !yield(parcel, nil) {
					return
				}
			}

			offset += pageSize
			// An exactly page-sized final page would look complete; only
			// stop once the server also reports nothing was truncated
			if !page.ExceededTransferLimit && len(page.Features) < pageSize {
				return
			}
		}
	}
}

// ExportParcels streams parcels matching the filter into a CSV artifact.
// Returns the row count and the output path.
func (e *Exporter) ExportParcels(filter ParcelFilter) (int, string, error) {
	if err := filter.Validate(); err != nil {
		return 0, "", err
	}

	outPath := filepath.Join(e.cfg.Export.OutputDir, fmt.Sprintf("padrones_%s.csv", filter.Suffix()))
	log := e.logger.WithField("path", outPath)
	log.WithField("where", filter.Where()).Info("exporting parcels")

	if err := os.MkdirAll(e.cfg.Export.OutputDir, 0755); err != nil {
		return 0, "", fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create output file: %w", err)
	}

	w := csv.NewWriter(out)
	if err := w.Write(parcelHeader); err != nil {
		out.Close()
		return 0, outPath, err
	}

	count := 0
	for parcel, err := range e.StreamParcels(filter.Where()) {
		if err != nil {
			out.Close()
			return count, outPath, err
		}

		record := []string{
			fmt.Sprintf("%d", parcel.Department),
			fmt.Sprintf("%d", parcel.Number),
			parcel.Label,
			parcel.LocalityCode,
			parcel.LocalityName,
		}
		if err := w.Write(record); err != nil {
			out.Close()
			return count, outPath, err
		}

		count++
		if e.cfg.Export.ProgressEvery > 0 && count%e.cfg.Export.ProgressEvery == 0 {
			log.WithField("rows", count).Info("parcels exported so far")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		out.Close()
		return count, outPath, err
	}
	if err := out.Close(); err != nil {
		return count, outPath, err
	}

	log.WithField("rows", count).Info("parcels exported")
	return count, outPath, nil
}

// parcelFromAttributes builds a Parcel, reporting false when either
// identifier attribute is null
func parcelFromAttributes(attrs arcgis.Attributes) (Parcel, bool) {
	department, ok := intAttr(attrs["CodDepartamento"])
	if !ok {
		return Parcel{}, false
	}
	number, ok := intAttr(attrs["NroPadron"])
	if !ok {
		return Parcel{}, false
	}

	return Parcel{
		Department:   department,
		Number:       number,
		Label:        stringAttr(attrs["DeptoPadron"]),
		LocalityCode: stringAttr(attrs["codLocCat"]),
		LocalityName: stringAttr(attrs["nomLocCat"]),
	}, true
}

func intAttr(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func stringAttr(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return formatValue(v)
	}
}
