package record

// Method identifies how a match was scored.
type Method string

const (
	MethodVector  Method = "vector"
	MethodLexical Method = "lexical"
)

// Match is a ranked query result.
type Match struct {
	ID          string            `json:"id"`
	Score       float64           `json:"score"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Method      Method            `json:"method"`
}
