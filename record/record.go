// Package record defines the data shared by the sync engine, the vector
// indexes and the query service.
package record

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDPrefix prefixes every patient entry identifier.
const IDPrefix = "demo_patient_"

// Description is a patient description at a stable position of the source sequence.
type Description struct {
	Position int
	Text     string
}

// Descriptions wraps ordered texts with their positions.
func Descriptions(texts []string) []Description {
	out := make([]Description, len(texts))
	for i, text := range texts {
		out[i] = Description{Position: i, Text: text}
	}
	return out
}

// Entry is a stored vector index entry.
type Entry struct {
	ID           string
	Position     int
	Vector       []float32
	Text         string
	Metadata     map[string]string
	VectorizedAt time.Time
}

// ID returns the entry identifier for a position.
func ID(position int) string {
	return IDPrefix + strconv.Itoa(position)
}

// Position returns the position encoded in an entry identifier.
func Position(id string) (int, error) {
	if !strings.HasPrefix(id, IDPrefix) {
		return 0, fmt.Errorf("record: foreign identifier %q", id)
	}
	pos, err := strconv.Atoi(id[len(IDPrefix):])
	if err != nil || pos < 0 {
		return 0, fmt.Errorf("record: invalid identifier %q", id)
	}
	if ID(pos) != id {
		return 0, fmt.Errorf("record: non canonical identifier %q", id)
	}
	return pos, nil
}

// Less orders identifiers by position when both are entry identifiers, lexically otherwise.
// The order is numeric, not string order: demo_patient_2 sorts before demo_patient_10.
// Entry identifiers sort before foreign ones.
func Less(a, b string) bool {
	pa, errA := Position(a)
	pb, errB := Position(b)
	switch {
	case errA == nil && errB == nil:
		return pa < pb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}
