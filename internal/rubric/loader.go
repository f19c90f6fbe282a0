// Package rubric loads the external inputs to an audit: the rubric itself
// plus the evidence and opinion sets produced by upstream collectors and
// judges. Serialization lives here so the engine stays free of I/O.
package rubric

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/tribunal/internal/evidence"
	"github.com/sells-group/tribunal/internal/model"
)

// LoadRubric reads an ordered criterion list from a YAML file.
func LoadRubric(path string) (model.Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Rubric{}, eris.Wrapf(err, "rubric: read %s", path)
	}

	var r model.Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return model.Rubric{}, eris.Wrapf(err, "rubric: parse %s", path)
	}
	if len(r.Criteria) == 0 {
		return model.Rubric{}, eris.Errorf("rubric: %s defines no criteria", path)
	}
	for _, c := range r.Criteria {
		if c.ID == "" {
			return model.Rubric{}, eris.Errorf("rubric: %s contains a criterion without an id", path)
		}
	}
	return r, nil
}

// LoadEvidence reads a JSON array of evidence records into a fresh store.
// Records with an unknown source are skipped with a warning; records without
// an ID get a generated one. A duplicate ID indicates an upstream bug and is
// propagated.
func LoadEvidence(path string) (*evidence.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rubric: read evidence %s", path)
	}

	var records []model.EvidenceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "rubric: parse evidence %s", path)
	}

	st := evidence.NewStore()
	for _, r := range records {
		if !r.Source.Valid() {
			zap.L().Warn("rubric: skipping evidence with unknown source",
				zap.String("id", r.ID),
				zap.String("source", string(r.Source)),
			)
			continue
		}
		if r.ID == "" {
			r.ID = "ev_" + uuid.New().String()[:8]
		}
		if err := st.Add(r); err != nil {
			return nil, eris.Wrapf(err, "rubric: load evidence %s", path)
		}
	}
	return st, nil
}

// LoadOpinions reads a JSON array of persona opinions. Opinions naming an
// unknown persona or an out-of-range score are skipped with a warning; the
// synthesizer degrades gracefully to neutral defaults for whatever is
// missing.
func LoadOpinions(path string) ([]model.PersonaOpinion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rubric: read opinions %s", path)
	}

	var raw []model.PersonaOpinion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrapf(err, "rubric: parse opinions %s", path)
	}

	var opinions []model.PersonaOpinion
	for _, op := range raw {
		if !op.Persona.Valid() {
			zap.L().Warn("rubric: skipping opinion with unknown persona",
				zap.String("persona", string(op.Persona)),
				zap.String("criterion", op.CriterionID),
			)
			continue
		}
		if op.Score < 1 || op.Score > 5 {
			zap.L().Warn("rubric: skipping opinion with out-of-range score",
				zap.String("persona", string(op.Persona)),
				zap.String("criterion", op.CriterionID),
				zap.Int("score", op.Score),
			)
			continue
		}
		opinions = append(opinions, op)
	}
	return opinions, nil
}

// LoadRun reads a complete serialized AuditRun, assigning a run ID when the
// file does not carry one.
func LoadRun(path string) (model.AuditRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.AuditRun{}, eris.Wrapf(err, "rubric: read run %s", path)
	}

	var run model.AuditRun
	if err := json.Unmarshal(data, &run); err != nil {
		return model.AuditRun{}, eris.Wrapf(err, "rubric: parse run %s", path)
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	return run, nil
}
