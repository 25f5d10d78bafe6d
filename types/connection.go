package types

import (
	"fmt"
	"time"
)

// Connection is a registered database connection under governance
type Connection struct {
	Name                 string           `json:"name"`
	DBType               DBType           `json:"db_type"`
	ModuleName           string           `json:"module_name"`
	Environment          Environment      `json:"environment"`
	ConnectionString     string           `json:"connection_string,omitempty"`
	DatabaseName         string           `json:"database_name,omitempty"`
	GovernancePolicies   []string         `json:"governance_policies,omitempty"`
	ComplianceFrameworks []string         `json:"compliance_frameworks,omitempty"`
	Status               ConnectionStatus `json:"status"`
	LastHealthCheck      time.Time        `json:"last_health_check,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Validate gates connection construction before registration
func (c *Connection) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("connection name cannot be empty")
	}
	if !c.DBType.Valid() {
		return fmt.Errorf("connection %s: unknown db type %q", c.Name, c.DBType)
	}
	if !c.Environment.Valid() {
		return fmt.Errorf("connection %s: unknown environment %q", c.Name, c.Environment)
	}
	if c.Status != "" && !c.Status.Valid() {
		return fmt.Errorf("connection %s: unknown status %q", c.Name, c.Status)
	}
	return nil
}
