package analysis

// CompletionState describes what the cursor is positioned on. It is built
// fresh for every request and never mutated after Resolve returns.
type CompletionState struct {
	// DatabaseName is the argument of the nearest use('...') before the
	// cursor, or empty.
	DatabaseName string

	// CollectionName is the collection addressed by a db.<name>, db['name']
	// or db.getCollection('name') chain, or empty.
	CollectionName string

	IsObjectKey         bool
	IsShellMethod       bool
	IsUseCallExpression bool
	IsDbCallExpression  bool
	IsCollectionName    bool
	IsAggregationCursor bool
	IsFindCursor        bool
	IsObject            bool
	IsArray             bool

	IsGlobalSymbol          bool
	IsStreamProcessorName   bool
	IsStreamProcessorMethod bool
	IsStage                 bool
	IsSystemVariable        bool
}

// Namespace returns "database.collection", or empty when either is unresolved.
func (s CompletionState) Namespace() string {
	if s.DatabaseName == "" || s.CollectionName == "" {
		return ""
	}

	return s.DatabaseName + "." + s.CollectionName
}

// ExportMode classifies a selection for export to another language.
type ExportMode string

// Export modes.
const (
	ExportAggregation ExportMode = "AGGREGATION"
	ExportQuery       ExportMode = "QUERY"
	ExportOther       ExportMode = "OTHER"
)

// Mode returns the export mode implied by the selection flags.
func (s CompletionState) Mode() ExportMode {
	switch {
	case s.IsArray:
		return ExportAggregation
	case s.IsObject:
		return ExportQuery
	default:
		return ExportOther
	}
}
