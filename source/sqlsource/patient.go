package sqlsource

import (
	"fmt"
	"strings"
	"time"
)

const (
	birthDateLayout = "January 02, 2006"
	missingName     = "Name not available"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Patient is a row of the patients table.
type Patient struct {
	FullName             string
	IdentificationNumber string
	BirthDate            *time.Time
	Phone                string
	Email                string
}

// Age returns completed years at now.
func (p *Patient) Age(now time.Time) (int, bool) {
	if p.BirthDate == nil {
		return 0, false
	}
	b := *p.BirthDate
	age := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		age--
	}
	return age, true
}

// Describe renders the patient as a natural language sentence; empty columns are omitted.
func (p *Patient) Describe(now time.Time) string {
	sb := strings.Builder{}
	name := strings.TrimSpace(p.FullName)
	if name == "" {
		name = missingName
	}
	sb.WriteString("Patient ")
	sb.WriteString(name)
	if p.IdentificationNumber != "" {
		sb.WriteString(" with identification number ")
		sb.WriteString(p.IdentificationNumber)
	}
	if age, ok := p.Age(now); ok {
		fmt.Fprintf(&sb, ", %d years old", age)
		sb.WriteString(", born on ")
		sb.WriteString(p.BirthDate.Format(birthDateLayout))
	}
	if p.Phone != "" {
		sb.WriteString(", contact phone ")
		sb.WriteString(p.Phone)
	}
	if p.Email != "" {
		sb.WriteString(", email address ")
		sb.WriteString(p.Email)
	}
	sb.WriteString(".")
	return sb.String()
}

func toDate(v any) (*time.Time, error) {
	switch actual := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &actual, nil
	case []byte:
		return parseDate(string(actual))
	case string:
		return parseDate(actual)
	}
	return nil, fmt.Errorf("unsupported birth date type %T", v)
}

func parseDate(text string) (*time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("invalid birth date %q", text)
}

func toText(v any) string {
	switch actual := v.(type) {
	case nil:
		return ""
	case []byte:
		return strings.TrimSpace(string(actual))
	case string:
		return strings.TrimSpace(actual)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
