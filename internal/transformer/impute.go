// Impute fills absent or nil optional fields from a declarative default
// table so that every record of an entity leaves the pipeline with an
// identical, fully populated field set. The assembler and the batch loader
// both rely on that uniformity when building positional rows.
//
// Imputation never fails: an unrecognized absence always resolves to the
// table's default, never to an error.

package transformer

import (
	"cricetl/internal/schema"
	"cricetl/pkg/records"
)

// Impute applies one entity table's default values.
type Impute struct {
	Table schema.Table
}

// Apply fills each record in place and returns the batch.
func (im Impute) Apply(in []records.Record) []records.Record {
	defaults := im.Table.Defaults
	if len(defaults) == 0 {
		return in
	}
	for _, r := range in {
		for field, def := range defaults {
			if v, ok := r[field]; !ok || v == nil {
				r[field] = def
			}
		}
	}
	return in
}

// ImputeAll returns the imputation chain for one whole normalized document:
// one Impute per entity, in load order.
func ImputeAll() map[string]Impute {
	out := make(map[string]Impute, 4)
	for _, t := range schema.Tables() {
		out[t.Name] = Impute{Table: t}
	}
	return out
}
