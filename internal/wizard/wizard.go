// Package wizard provides the interactive agent-setup form used by
// `gdabench init --interactive`.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/spboyer/gdabench/internal/models"
)

// RunAgentWizard runs an interactive huh form that collects the fields needed
// to register a data agent. If initialID is non-empty, it pre-populates the
// agent id field.
func RunAgentWizard(in io.Reader, out io.Writer, initialID string) (*models.Agent, error) {
	var (
		id           = initialID
		displayName  string
		projectID    string
		location     = "global"
		resourceID   string
		dsType       = string(models.DatasourceBigQuery)
		bqProject    string
		bqDataset    string
		lookerURI    string
		lookerModel  string
		clientID     string
		clientSecret string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Agent id").
				Description("A short local identifier for this agent").
				Placeholder("sales-agent").
				Value(&id).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("agent id is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Display name").
				Placeholder("Sales Data Agent").
				Value(&displayName),
			huh.NewInput().
				Title("GCP project id").
				Description("Project that hosts the data agent").
				Placeholder("my-project").
				Value(&projectID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("project id is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Location").
				Description("Data agent location").
				Value(&location),
			huh.NewInput().
				Title("Agent resource id").
				Description("The dataAgents/{id} segment of the resource name").
				Placeholder("sales_agent_v2").
				Value(&resourceID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("agent resource id is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Datasource type").
				Options(
					huh.NewOption("BigQuery", string(models.DatasourceBigQuery)),
					huh.NewOption("Looker", string(models.DatasourceLooker)),
				).
				Value(&dsType),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("BigQuery project").
				Placeholder("my-project").
				Value(&bqProject),
			huh.NewInput().
				Title("BigQuery dataset").
				Placeholder("sales").
				Value(&bqDataset),
		).WithHideFunc(func() bool {
			return dsType != string(models.DatasourceBigQuery)
		}),
		huh.NewGroup(
			huh.NewInput().
				Title("Looker instance URI").
				Placeholder("https://example.looker.com").
				Value(&lookerURI),
			huh.NewInput().
				Title("LookML model").
				Placeholder("sales_model").
				Value(&lookerModel),
			huh.NewInput().
				Title("Looker client id").
				Description("API3 credentials; required for Looker agents").
				Value(&clientID),
			huh.NewInput().
				Title("Looker client secret").
				EchoMode(huh.EchoModePassword).
				Value(&clientSecret),
		).WithHideFunc(func() bool {
			return dsType != string(models.DatasourceLooker)
		}),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	return assembleAgent(answers{
		id:           id,
		displayName:  displayName,
		projectID:    projectID,
		location:     location,
		resourceID:   resourceID,
		dsType:       dsType,
		bqProject:    bqProject,
		bqDataset:    bqDataset,
		lookerURI:    lookerURI,
		lookerModel:  lookerModel,
		clientID:     clientID,
		clientSecret: clientSecret,
	}), nil
}

// answers holds the raw field values collected by the form.
type answers struct {
	id           string
	displayName  string
	projectID    string
	location     string
	resourceID   string
	dsType       string
	bqProject    string
	bqDataset    string
	lookerURI    string
	lookerModel  string
	clientID     string
	clientSecret string
}

func assembleAgent(a answers) *models.Agent {
	agent := &models.Agent{
		ID:              strings.TrimSpace(a.id),
		DisplayName:     strings.TrimSpace(a.displayName),
		ProjectID:       strings.TrimSpace(a.projectID),
		Location:        strings.TrimSpace(a.location),
		AgentResourceID: strings.TrimSpace(a.resourceID),
		Datasource: models.DatasourceConfig{
			Type: models.DatasourceType(a.dsType),
		},
	}
	switch agent.Datasource.Type {
	case models.DatasourceBigQuery:
		agent.Datasource.ProjectID = strings.TrimSpace(a.bqProject)
		agent.Datasource.DatasetID = strings.TrimSpace(a.bqDataset)
	case models.DatasourceLooker:
		agent.Datasource.InstanceURI = strings.TrimSpace(a.lookerURI)
		agent.Datasource.LookmlModel = strings.TrimSpace(a.lookerModel)
		agent.LookerClientID = strings.TrimSpace(a.clientID)
		agent.LookerClientSecret = strings.TrimSpace(a.clientSecret)
	}
	if agent.DisplayName == "" {
		agent.DisplayName = agent.ID
	}
	return agent
}
