package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/spboyer/gdabench/internal/models"
)

// Trace payloads dominate the database size, so they are stored
// zstd-compressed. Everything else is small enough to keep as plain JSON.
var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

func compressJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return zstdEnc.EncodeAll(raw, nil), nil
}

func decompressJSON(blob []byte, out any) error {
	if len(blob) == 0 {
		return nil
	}
	raw, err := zstdDec.DecodeAll(blob, nil)
	if err != nil {
		return fmt.Errorf("decompressing blob: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

type agentRecord struct {
	ID                 string `gorm:"primaryKey"`
	DisplayName        string
	ProjectID          string
	Location           string
	AgentResourceID    string
	Datasource         []byte
	LookerClientID     string
	LookerClientSecret string
	CreatedAt          time.Time
}

func (agentRecord) TableName() string { return "agents" }

func toAgentRecord(a *models.Agent) (*agentRecord, error) {
	ds, err := marshalJSON(a.Datasource)
	if err != nil {
		return nil, err
	}
	return &agentRecord{
		ID:                 a.ID,
		DisplayName:        a.DisplayName,
		ProjectID:          a.ProjectID,
		Location:           a.Location,
		AgentResourceID:    a.AgentResourceID,
		Datasource:         ds,
		LookerClientID:     a.LookerClientID,
		LookerClientSecret: a.LookerClientSecret,
		CreatedAt:          a.CreatedAt,
	}, nil
}

func (r *agentRecord) toModel() (*models.Agent, error) {
	a := &models.Agent{
		ID:                 r.ID,
		DisplayName:        r.DisplayName,
		ProjectID:          r.ProjectID,
		Location:           r.Location,
		AgentResourceID:    r.AgentResourceID,
		LookerClientID:     r.LookerClientID,
		LookerClientSecret: r.LookerClientSecret,
		CreatedAt:          r.CreatedAt,
	}
	if err := unmarshalJSON(r.Datasource, &a.Datasource); err != nil {
		return nil, err
	}
	return a, nil
}

type suiteRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	Examples    []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (suiteRecord) TableName() string { return "suites" }

func toSuiteRecord(s *models.Suite) (*suiteRecord, error) {
	ex, err := marshalJSON(s.Examples)
	if err != nil {
		return nil, err
	}
	return &suiteRecord{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Examples:    ex,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}, nil
}

func (r *suiteRecord) toModel() (*models.Suite, error) {
	s := &models.Suite{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if err := unmarshalJSON(r.Examples, &s.Examples); err != nil {
		return nil, err
	}
	return s, nil
}

type snapshotRecord struct {
	ID              string `gorm:"primaryKey"`
	OriginalSuiteID string
	Name            string
	Examples        []byte
	CreatedAt       time.Time
}

func (snapshotRecord) TableName() string { return "suite_snapshots" }

func toSnapshotRecord(s *models.SuiteSnapshot) (*snapshotRecord, error) {
	ex, err := marshalJSON(s.Examples)
	if err != nil {
		return nil, err
	}
	return &snapshotRecord{
		ID:              s.ID,
		OriginalSuiteID: s.OriginalSuiteID,
		Name:            s.Name,
		Examples:        ex,
		CreatedAt:       s.CreatedAt,
	}, nil
}

func (r *snapshotRecord) toModel() (*models.SuiteSnapshot, error) {
	s := &models.SuiteSnapshot{
		ID:              r.ID,
		OriginalSuiteID: r.OriginalSuiteID,
		Name:            r.Name,
		CreatedAt:       r.CreatedAt,
	}
	if err := unmarshalJSON(r.Examples, &s.Examples); err != nil {
		return nil, err
	}
	return s, nil
}

type runRecord struct {
	ID                   string `gorm:"primaryKey"`
	AgentID              string `gorm:"index"`
	SuiteSnapshotID      string
	OriginalSuiteID      string `gorm:"index"`
	Status               string
	AgentContextSnapshot string
	CreatedAt            time.Time
}

func (runRecord) TableName() string { return "runs" }

func toRunRecord(r *models.Run) *runRecord {
	return &runRecord{
		ID:                   r.ID,
		AgentID:              r.AgentID,
		SuiteSnapshotID:      r.SuiteSnapshotID,
		OriginalSuiteID:      r.OriginalSuiteID,
		Status:               string(r.Status),
		AgentContextSnapshot: r.AgentContextSnapshot,
		CreatedAt:            r.CreatedAt,
	}
}

func (r *runRecord) toModel() *models.Run {
	return &models.Run{
		ID:                   r.ID,
		AgentID:              r.AgentID,
		SuiteSnapshotID:      r.SuiteSnapshotID,
		OriginalSuiteID:      r.OriginalSuiteID,
		Status:               models.RunStatus(r.Status),
		AgentContextSnapshot: r.AgentContextSnapshot,
		CreatedAt:            r.CreatedAt,
	}
}

type trialRecord struct {
	ID                string `gorm:"primaryKey"`
	RunID             string `gorm:"index"`
	ExampleSnapshotID string
	OriginalExampleID string
	Question          string
	Asserts           []byte
	Status            string
	FailedStage       string
	StartedAt         *time.Time
	CompletedAt       *time.Time
	OutputText        string
	ErrorMessage      string
	ErrorTraceback    string
	TraceBlob         []byte
	AssertionResults  []byte
	DurationMS        int64
	TTFRMS            int64
}

func (trialRecord) TableName() string { return "trials" }

func toTrialRecord(t *models.Trial) (*trialRecord, error) {
	asserts, err := marshalJSON(t.Asserts)
	if err != nil {
		return nil, err
	}
	results, err := marshalJSON(t.AssertionResults)
	if err != nil {
		return nil, err
	}
	traceBlob, err := compressJSON(t.TraceResults)
	if err != nil {
		return nil, err
	}
	return &trialRecord{
		ID:                t.ID,
		RunID:             t.RunID,
		ExampleSnapshotID: t.ExampleSnapshotID,
		OriginalExampleID: t.OriginalExampleID,
		Question:          t.Question,
		Asserts:           asserts,
		Status:            string(t.Status),
		FailedStage:       string(t.FailedStage),
		StartedAt:         t.StartedAt,
		CompletedAt:       t.CompletedAt,
		OutputText:        t.OutputText,
		ErrorMessage:      t.ErrorMessage,
		ErrorTraceback:    t.ErrorTraceback,
		TraceBlob:         traceBlob,
		AssertionResults:  results,
		DurationMS:        t.DurationMS,
		TTFRMS:            t.TTFRMS,
	}, nil
}

func (r *trialRecord) toModel() (*models.Trial, error) {
	t := &models.Trial{
		ID:                r.ID,
		RunID:             r.RunID,
		ExampleSnapshotID: r.ExampleSnapshotID,
		OriginalExampleID: r.OriginalExampleID,
		Question:          r.Question,
		Status:            models.TrialStatus(r.Status),
		FailedStage:       models.TrialStatus(r.FailedStage),
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		OutputText:        r.OutputText,
		ErrorMessage:      r.ErrorMessage,
		ErrorTraceback:    r.ErrorTraceback,
		DurationMS:        r.DurationMS,
		TTFRMS:            r.TTFRMS,
	}
	if err := unmarshalJSON(r.Asserts, &t.Asserts); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(r.AssertionResults, &t.AssertionResults); err != nil {
		return nil, err
	}
	if err := decompressJSON(r.TraceBlob, &t.TraceResults); err != nil {
		return nil, err
	}
	return t, nil
}

type suggestionRecord struct {
	ID        string `gorm:"primaryKey"`
	TrialID   string `gorm:"index"`
	Assertion []byte
	Rationale string
	Accepted  bool
}

func (suggestionRecord) TableName() string { return "suggested_asserts" }

func toSuggestionRecord(s *models.SuggestedAssertion) (*suggestionRecord, error) {
	assertion, err := marshalJSON(s.Assertion)
	if err != nil {
		return nil, err
	}
	return &suggestionRecord{
		ID:        s.ID,
		TrialID:   s.TrialID,
		Assertion: assertion,
		Rationale: s.Rationale,
		Accepted:  s.Accepted,
	}, nil
}

func (r *suggestionRecord) toModel() (*models.SuggestedAssertion, error) {
	s := &models.SuggestedAssertion{
		ID:        r.ID,
		TrialID:   r.TrialID,
		Rationale: r.Rationale,
		Accepted:  r.Accepted,
	}
	if err := unmarshalJSON(r.Assertion, &s.Assertion); err != nil {
		return nil, err
	}
	return s, nil
}
