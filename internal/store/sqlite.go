package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spboyer/gdabench/internal/models"
)

// SQLiteStore is the canonical [Store] backed by a SQLite database file.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and migrates) the database at path. Use ":memory:" for an
// ephemeral store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}

	err = db.AutoMigrate(
		&agentRecord{},
		&suiteRecord{},
		&snapshotRecord{},
		&runRecord{},
		&trialRecord{},
		&suggestionRecord{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *SQLiteStore) CreateAgent(ctx context.Context, agent *models.Agent) error {
	rec, err := toAgentRecord(agent)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var rec agentRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return rec.toModel()
}

func (s *SQLiteStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var recs []agentRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	agents := make([]models.Agent, 0, len(recs))
	for i := range recs {
		a, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, nil
}

func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&agentRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveSuite(ctx context.Context, suite *models.Suite) error {
	rec, err := toSuiteRecord(suite)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *SQLiteStore) GetSuite(ctx context.Context, id string) (*models.Suite, error) {
	var rec suiteRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return rec.toModel()
}

func (s *SQLiteStore) ListSuites(ctx context.Context) ([]models.Suite, error) {
	var recs []suiteRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	suites := make([]models.Suite, 0, len(recs))
	for i := range recs {
		m, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		suites = append(suites, *m)
	}
	return suites, nil
}

func (s *SQLiteStore) CreateSnapshot(ctx context.Context, snap *models.SuiteSnapshot) error {
	rec, err := toSnapshotRecord(snap)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*models.SuiteSnapshot, error) {
	var rec snapshotRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return rec.toModel()
}

// CreateRun inserts the run and all of its trials in one transaction, so a
// run never exists with a partial trial set.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.Run, trials []models.Trial) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toRunRecord(run)).Error; err != nil {
			return err
		}
		for i := range trials {
			rec, err := toTrialRecord(&trials[i])
			if err != nil {
				return err
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var rec runRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return rec.toModel(), nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []runRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	runs := make([]models.Run, 0, len(recs))
	for i := range recs {
		runs = append(runs, *recs[i].toModel())
	}
	return runs, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus) error {
	res := s.db.WithContext(ctx).Model(&runRecord{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetTrial(ctx context.Context, id string) (*models.Trial, error) {
	var rec trialRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, translateErr(err)
	}
	return rec.toModel()
}

func (s *SQLiteStore) ListTrials(ctx context.Context, runID string) ([]models.Trial, error) {
	var recs []trialRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	trials := make([]models.Trial, 0, len(recs))
	for i := range recs {
		t, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		trials = append(trials, *t)
	}
	return trials, nil
}

func (s *SQLiteStore) UpdateTrial(ctx context.Context, trial *models.Trial) error {
	rec, err := toTrialRecord(trial)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(rec).Error
}

func (s *SQLiteStore) ClaimTrial(ctx context.Context, trialID string) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&trialRecord{}).
		Where("id = ? AND status = ?", trialID, string(models.TrialPending)).
		Updates(map[string]any{
			"status":     string(models.TrialRunning),
			"started_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *SQLiteStore) SaveSuggestions(ctx context.Context, suggestions []models.SuggestedAssertion) error {
	if len(suggestions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range suggestions {
			rec, err := toSuggestionRecord(&suggestions[i])
			if err != nil {
				return err
			}
			if err := tx.Save(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListSuggestions(ctx context.Context, trialID string) ([]models.SuggestedAssertion, error) {
	var recs []suggestionRecord
	if err := s.db.WithContext(ctx).Where("trial_id = ?", trialID).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.SuggestedAssertion, 0, len(recs))
	for i := range recs {
		m, err := recs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *SQLiteStore) SetSuggestionAccepted(ctx context.Context, id string, accepted bool) error {
	res := s.db.WithContext(ctx).Model(&suggestionRecord{}).
		Where("id = ?", id).
		Update("accepted", accepted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
