// Package export orchestrates bulk extraction of SNIG Catastro layers into
// local artifacts.
//
// Feature layers follow the resumable pipeline: discover the full sorted
// identifier set, fetch it in fixed-size chunks persisted as checkpoints,
// then stream-merge the chunks into one GeoJSON FeatureCollection. A killed
// run resumes from its checkpoints without re-downloading completed chunks.
//
// Tables and the parcel stream are offset-paginated instead: tables
// accumulate in memory and write a CSV with a derived header, while parcels
// are yielded lazily with cross-page deduplication.
//
// Execution is single-threaded and sequential throughout; safe resumption
// relies entirely on checkpoint persistence, not in-flight cancellation.
package export
