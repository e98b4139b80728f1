package meta

// Entry metadata keys.
const (
	TypeKey         = "type"
	IndexKey        = "index"
	NamespaceKey    = "namespace"
	VectorizedAtKey = "vectorized_at"
	ContentHashKey  = "content_hash"
	ModelKey        = "embedding_model"
)

const (
	// PatientDescriptionType tags demographic patient entries.
	PatientDescriptionType = "patient_demographic_description"
	// DefaultNamespace is the namespace patient entries live in.
	DefaultNamespace = "demographic_patients_namespace"
)
