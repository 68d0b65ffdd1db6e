// Package records defines the record currency passed between pipeline stages.
//
// A Record is a flat field-to-value map. Values are plain Go types (string,
// int64, float64, bool, nil); nested source structures are flattened into
// records before they reach transformers or storage.
package records

// Record is one flat row of named values.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
