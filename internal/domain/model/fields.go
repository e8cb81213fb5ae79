package model

// Updatable record fields, as named on the wire.
const (
	FieldStatus    = "status"
	FieldData      = "data"
	FieldVersion   = "version"
	FieldFeatureID = "feature_id"
	FieldID        = "id"
)

// Fields is a partial update keyed by wire field name.
type Fields map[string]string

// Apply returns rec with the supplied fields replaced. Unrecognized keys are
// ignored here; validation rejects them before Apply is reached.
func (f Fields) Apply(rec FeatureRecord) FeatureRecord {
	if v, ok := f[FieldStatus]; ok {
		rec.Status = Status(v)
	}
	if v, ok := f[FieldData]; ok {
		rec.Data = v
	}
	if v, ok := f[FieldVersion]; ok {
		rec.Version = v
	}
	return rec
}
