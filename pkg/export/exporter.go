package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"snigexport/pkg/arcgis"
	"snigexport/pkg/checkpoint"
	"snigexport/pkg/config"
	errs "snigexport/pkg/errors"
	"snigexport/pkg/logger"
)

// Exporter orchestrates layer exports against the feature service
type Exporter struct {
	client *arcgis.Client
	cfg    *config.Config
	logger logger.Logger
}

// New creates an Exporter
func New(cfg *config.Config, client *arcgis.Client, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Exporter{
		client: client,
		cfg:    cfg,
		logger: log,
	}
}

// ExportLayers runs a batch export. A failing layer aborts that layer only;
// the batch continues with the next one. Returns the number of failures.
func (e *Exporter) ExportLayers(layers []Layer, skipLarge bool) int {
	failures := 0
	for _, layer := range layers {
		if skipLarge && layer.Large {
			e.logger.InfoWithFields("skipping large layer", map[string]interface{}{
				"layer": layer.ID,
				"name":  layer.Name,
			})
			continue
		}

		var err error
		switch layer.Kind {
		case KindFeature:
			err = e.ExportFeatureLayer(layer)
		case KindTable:
			_, err = e.ExportTable(layer)
		default:
			err = fmt.Errorf("unknown layer kind %q for %s", layer.Kind, layer.Name)
		}

		if err != nil {
			failures++
			e.logger.ErrorWithFields("layer export failed", map[string]interface{}{
				"layer": layer.ID,
				"name":  layer.Name,
				"error": err.Error(),
			})
		}
	}
	return failures
}

// ExportFeatureLayer exports one spatial layer to a GeoJSON artifact:
// discover all identifiers, fetch them in checkpointed chunks, then merge
// the chunks into the final file.
func (e *Exporter) ExportFeatureLayer(layer Layer) error {
	outPath := filepath.Join(e.cfg.Export.OutputDir, layer.Name+".geojson")
	log := e.logger.WithFields(map[string]interface{}{
		"layer": layer.ID,
		"name":  layer.Name,
	})
	log.Info("exporting feature layer")

	oidField, err := e.client.ObjectIDField(layer.ID)
	if err != nil {
		return err
	}
	log.WithField("oid_field", oidField).Debug("resolved OID field")

	ids, err := e.client.QueryIDs(layer.ID, "1=1")
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		log.Info("layer has no records")
		return e.writeEmptyCollection(outPath)
	}

	store, err := checkpoint.NewStore(e.cfg.TmpDir(), layer.Name)
	if err != nil {
		return err
	}

	numChunks, err := e.fetchChunks(store, layer, ids)
	if err != nil {
		return err
	}

	total, err := e.mergeChunks(store, numChunks, outPath)
	if err != nil {
		// Checkpoints stay on disk so the merge alone can be retried
		return err
	}

	store.Clear(numChunks)

	log.InfoWithFields("layer exported", map[string]interface{}{
		"path":     outPath,
		"features": total,
	})
	return nil
}

// fetchChunks downloads every chunk of the identifier set that is not
// already checkpointed. Chunk boundaries depend only on identifier order
// and chunk size, so a re-run against the same identifier set partitions
// identically and completed chunks are never fetched twice.
func (e *Exporter) fetchChunks(store *checkpoint.Store, layer Layer, ids []int64) (int, error) {
	chunkSize := e.cfg.Export.ChunkSize
	total := len(ids)
	numChunks := (total + chunkSize - 1) / chunkSize
	fetched := 0

	for index := 0; index < numChunks; index++ {
		start := index * chunkSize
		end := start + chunkSize
		if end > total {
			end = total
		}

		fc, err := store.Load(index)
		if fc != nil {
			fetched += len(fc.Features)
			e.logger.InfoWithFields("chunk already present, skipping", map[string]interface{}{
				"chunk":     index,
				"processed": end,
				"total":     total,
			})
			continue
		}
		if err != nil {
			e.logger.WithError(err).WithField("chunk", index).Warn("corrupt checkpoint, re-fetching")
		}

		raw, err := e.client.QueryFeaturesByIDs(layer.ID, ids[start:end], e.cfg.Export.OutSR)
		if err != nil {
			return numChunks, err
		}

		var parsed arcgis.FeatureCollection
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return numChunks, errs.New(errs.KindShape, 0, "chunk %d response is not a feature collection: %v", index, err)
		}

		if err := store.Save(index, raw); err != nil {
			return numChunks, err
		}

		fetched += len(parsed.Features)
		e.logger.InfoWithFields("chunk downloaded", map[string]interface{}{
			"chunk":     index,
			"features":  len(parsed.Features),
			"processed": end,
			"total":     total,
		})
	}

	e.logger.WithField("features", fetched).Debug("all chunks present")
	return numChunks, nil
}

// mergeChunks streams every checkpoint into the final artifact in one
// pass, never holding more than a single chunk in memory. A missing chunk
// is skipped and reported through a lower feature count rather than
// failing the merge.
func (e *Exporter) mergeChunks(store *checkpoint.Store, numChunks int, outPath string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	w := bufio.NewWriter(out)
	if _, err := w.WriteString(`{"type":"FeatureCollection","features":[`); err != nil {
		out.Close()
		return 0, err
	}

	first := true
	total := 0
	for index := 0; index < numChunks; index++ {
		fc, err := store.Load(index)
		if fc == nil {
			e.logger.WithError(err).WithField("chunk", index).Warn("chunk missing during merge, skipping")
			continue
		}

		for _, feature := range fc.Features {
			if !first {
				if err := w.WriteByte(','); err != nil {
					out.Close()
					return total, err
				}
			}
			if _, err := w.Write(feature); err != nil {
				out.Close()
				return total, err
			}
			first = false
			total++
		}
	}

	if _, err := w.WriteString("]}"); err != nil {
		out.Close()
		return total, err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return total, err
	}
	if err := out.Close(); err != nil {
		return total, err
	}

	return total, nil
}

// writeEmptyCollection writes an artifact with zero features
func (e *Exporter) writeEmptyCollection(outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(outPath, []byte(`{"type":"FeatureCollection","features":[]}`), 0644)
}
