// Package arcgis implements the outbound protocol against an ArcGIS
// MapServer REST endpoint: layer metadata, identifier discovery
// (returnIdsOnly), by-ids feature fetches over POST, and offset-based
// attribute pages.
//
// The service embeds application errors inside HTTP 200 responses; the
// client detects those and treats them like any other transport failure,
// retrying with linear backoff before surfacing the last error.
package arcgis
