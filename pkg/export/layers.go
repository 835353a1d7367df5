package export

// LayerKind distinguishes spatial layers from plain tables
type LayerKind string

const (
	// KindFeature layers carry geometry and export to GeoJSON
	KindFeature LayerKind = "feature"
	// KindTable layers are attribute-only and export to CSV
	KindTable LayerKind = "table"
)

// Layer describes one exportable layer of the MapServer
type Layer struct {
	ID   int
	Name string
	Kind LayerKind
	// Large marks layers that --skip-large omits
	Large bool
}

// DefaultLayers is the SNIG_Catastro_Dos layer registry
var DefaultLayers = []Layer{
	{ID: 0, Name: "catastro_rural", Kind: KindFeature, Large: true},
	{ID: 1, Name: "catastro_rural_urbano", Kind: KindFeature, Large: true},
	{ID: 2, Name: "departamentos", Kind: KindFeature},
	{ID: 3, Name: "tblLocalidadCatastral", Kind: KindTable},
}
