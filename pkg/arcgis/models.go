package arcgis

import "encoding/json"

// Attributes is the attribute mapping of one record. There is no fixed
// schema; values decode to string, float64, bool or nil.
type Attributes map[string]interface{}

// Feature is one record in an f=json query response
type Feature struct {
	Attributes Attributes      `json:"attributes"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
}

// QueryResponse is the f=json envelope for offset-paged queries
type QueryResponse struct {
	Features []Feature `json:"features"`
	// ExceededTransferLimit is set by the server when more results exist
	// beyond the returned page
	ExceededTransferLimit bool `json:"exceededTransferLimit"`
}

// FeatureCollection is the f=geojson envelope. Features stay raw so chunk
// checkpoints can be merged as a byte stream without re-encoding geometry.
type FeatureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// LayerInfo is the subset of layer metadata needed to drive an export
type LayerInfo struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	ObjectIDField  string  `json:"objectIdField"`
	Fields         []Field `json:"fields"`
	MaxRecordCount int     `json:"maxRecordCount"`
}

// Field describes one attribute field of a layer
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// idsResponse is the returnIdsOnly=true envelope. ObjectIDs is a pointer
// so an absent or null list can be told apart from an empty one.
type idsResponse struct {
	ObjectIDFieldName string   `json:"objectIdFieldName"`
	ObjectIDs         *[]int64 `json:"objectIds"`
}

// errorEnvelope detects application errors embedded in 200 OK bodies
type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}
