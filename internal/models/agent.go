package models

import (
	"fmt"
	"time"
)

// DatasourceType identifies what backs a data agent.
type DatasourceType string

const (
	DatasourceBigQuery DatasourceType = "bigquery"
	DatasourceLooker   DatasourceType = "looker"
)

// DatasourceConfig describes the data source an agent answers questions over.
type DatasourceConfig struct {
	Type DatasourceType `yaml:"type" json:"type"`

	// BigQuery
	ProjectID string `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	DatasetID string `yaml:"dataset_id,omitempty" json:"dataset_id,omitempty"`

	// Looker
	InstanceURI string `yaml:"instance_uri,omitempty" json:"instance_uri,omitempty"`
	LookmlModel string `yaml:"lookml_model,omitempty" json:"lookml_model,omitempty"`
}

// Agent is a registered data-analytics agent the harness can evaluate.
type Agent struct {
	ID              string           `yaml:"id" json:"id"`
	DisplayName     string           `yaml:"name" json:"name"`
	ProjectID       string           `yaml:"project_id" json:"project_id"`
	Location        string           `yaml:"location" json:"location"`
	AgentResourceID string           `yaml:"agent_resource_id" json:"agent_resource_id"`
	Datasource      DatasourceConfig `yaml:"datasource" json:"datasource"`

	// Looker credentials, required iff the datasource is Looker-typed.
	LookerClientID     string `yaml:"looker_client_id,omitempty" json:"looker_client_id,omitempty"`
	LookerClientSecret string `yaml:"looker_client_secret,omitempty" json:"-"`

	CreatedAt time.Time `yaml:"-" json:"created_at"`
}

// ResourceName returns the fully qualified agent resource path.
func (a *Agent) ResourceName() string {
	return fmt.Sprintf("projects/%s/locations/%s/dataAgents/%s", a.ProjectID, a.Location, a.AgentResourceID)
}

// RequiresLookerCredentials reports whether executing against this agent needs
// a Looker client id/secret pair.
func (a *Agent) RequiresLookerCredentials() bool {
	return a.Datasource.Type == DatasourceLooker
}

// ValidateForExecution enforces the preconditions for running anything against
// this agent. It must be called before a run or ephemeral test creates any state.
func (a *Agent) ValidateForExecution() error {
	if a.AgentResourceID == "" {
		return fmt.Errorf("agent %q has no agent_resource_id", a.ID)
	}
	if a.RequiresLookerCredentials() && (a.LookerClientID == "" || a.LookerClientSecret == "") {
		return fmt.Errorf("agent %q uses a Looker datasource but is missing looker_client_id/looker_client_secret", a.ID)
	}
	return nil
}
