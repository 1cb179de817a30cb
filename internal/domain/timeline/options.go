package timeline

// ListOptions provides filtering options for listing timeline records.
type ListOptions struct {
	Sources []SourceKind
	// Before restricts results to records strictly older than this timestamp (ms). Zero means no bound.
	Before int64
	Limit  int
	Offset int
}
