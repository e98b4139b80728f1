package service

import "strings"

const defaultLexicalScore = 0.7

// LexicalRule scores a document when the query mentions one of QueryTerms
// and the document mentions one of DocumentTerms.
type LexicalRule struct {
	QueryTerms    []string `yaml:"query" json:"query"`
	DocumentTerms []string `yaml:"document" json:"document"`
	Score         float64  `yaml:"score" json:"score"`
}

// LexicalScorer ranks descriptions by keyword co-occurrence when embeddings are unavailable.
// Rules are evaluated in order; the first match wins, otherwise Default applies.
type LexicalScorer struct {
	Rules   []LexicalRule `yaml:"rules" json:"rules"`
	Default float64       `yaml:"default" json:"default"`
}

// DefaultLexicalScorer returns the clinical and gender keyword rules.
func DefaultLexicalScorer() *LexicalScorer {
	return &LexicalScorer{
		Rules: []LexicalRule{
			{QueryTerms: []string{"masculino"}, DocumentTerms: []string{"masculino"}, Score: 0.9},
			{QueryTerms: []string{"femenino"}, DocumentTerms: []string{"femenino"}, Score: 0.9},
			{QueryTerms: []string{"diabetes"}, DocumentTerms: []string{"diabetes"}, Score: 0.8},
			{QueryTerms: []string{"hipertension"}, DocumentTerms: []string{"hipertension", "hipertensión"}, Score: 0.8},
			{QueryTerms: []string{"asma"}, DocumentTerms: []string{"asma"}, Score: 0.8},
		},
		Default: defaultLexicalScore,
	}
}

// Score returns the score of document for query.
func (l *LexicalScorer) Score(query, document string) float64 {
	query = strings.ToLower(query)
	document = strings.ToLower(document)
	for _, rule := range l.Rules {
		if containsAny(query, rule.QueryTerms) && containsAny(document, rule.DocumentTerms) {
			return rule.Score
		}
	}
	return l.Default
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
