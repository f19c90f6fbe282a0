package model

import "github.com/rotisserie/eris"

// Persona is one of the three fixed subjective viewpoints. The set is closed:
// the synthesis pipeline's weighting and override rules depend on exactly
// these three existing and no others.
type Persona string

const (
	PersonaAdversarial Persona = "adversarial"
	PersonaSympathetic Persona = "sympathetic"
	PersonaPragmatic   Persona = "pragmatic"
)

// Personas returns the closed persona set in canonical order.
func Personas() []Persona {
	return []Persona{PersonaAdversarial, PersonaSympathetic, PersonaPragmatic}
}

// Valid reports whether p is a member of the closed persona set.
func (p Persona) Valid() bool {
	switch p {
	case PersonaAdversarial, PersonaSympathetic, PersonaPragmatic:
		return true
	}
	return false
}

// ParsePersona converts a string into a Persona, rejecting anything outside
// the closed set.
func ParsePersona(s string) (Persona, error) {
	p := Persona(s)
	if !p.Valid() {
		return "", eris.Errorf("model: unknown persona %q", s)
	}
	return p, nil
}

// PersonaOpinion is one independently generated subjective judgment for a
// single rubric criterion. Opinions are read-only inputs to the engine: they
// are never edited, only excluded from consideration.
type PersonaOpinion struct {
	Persona          Persona  `json:"persona"`
	CriterionID      string   `json:"criterion_id"`
	Score            int      `json:"score"`
	Argument         string   `json:"argument"`
	CitedEvidenceIDs []string `json:"cited_evidence_ids,omitempty"`
}
