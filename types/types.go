package types

// DBType identifies a supported database engine
type DBType string

const (
	DBTypeMongoDB     DBType = "mongodb"
	DBTypePostgreSQL  DBType = "postgresql"
	DBTypeRedis       DBType = "redis"
	DBTypeCosmosDB    DBType = "cosmos_db"
	DBTypeBlobStorage DBType = "blob_storage"
)

// AllDBTypes lists every supported database type
var AllDBTypes = []DBType{
	DBTypeMongoDB,
	DBTypePostgreSQL,
	DBTypeRedis,
	DBTypeCosmosDB,
	DBTypeBlobStorage,
}

// Valid reports whether the db type is a known engine
func (t DBType) Valid() bool {
	for _, known := range AllDBTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Environment identifies a deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Valid reports whether the environment is known
func (e Environment) Valid() bool {
	switch e {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return true
	}
	return false
}

// EnforcementLevel is a policy's severity floor
type EnforcementLevel string

const (
	EnforcementWarning  EnforcementLevel = "warning"
	EnforcementError    EnforcementLevel = "error"
	EnforcementBlocking EnforcementLevel = "blocking"
)

var enforcementRank = map[EnforcementLevel]int{
	EnforcementWarning:  1,
	EnforcementError:    2,
	EnforcementBlocking: 3,
}

// Valid reports whether the enforcement level is known
func (l EnforcementLevel) Valid() bool {
	_, ok := enforcementRank[l]
	return ok
}

// Rank returns the ordering weight (blocking > error > warning)
func (l EnforcementLevel) Rank() int {
	return enforcementRank[l]
}

// Severity classifies how bad a finding or violation is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Valid reports whether the severity is known
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns the ordering weight (critical > high > medium > low)
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is at least as severe as floor
func (s Severity) AtLeast(floor Severity) bool {
	return severityRank[s] >= severityRank[floor]
}

// ConnectionStatus is the lifecycle status of a registered connection
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionInactive ConnectionStatus = "inactive"
	ConnectionError    ConnectionStatus = "error"
)

// Valid reports whether the connection status is known
func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionActive, ConnectionInactive, ConnectionError:
		return true
	}
	return false
}

// ViolationStatus is the lifecycle status of a violation record
type ViolationStatus string

const (
	ViolationOpen       ViolationStatus = "open"
	ViolationInProgress ViolationStatus = "in_progress"
	ViolationResolved   ViolationStatus = "resolved"
	ViolationIgnored    ViolationStatus = "ignored"
)

// Valid reports whether the violation status is known
func (s ViolationStatus) Valid() bool {
	switch s {
	case ViolationOpen, ViolationInProgress, ViolationResolved, ViolationIgnored:
		return true
	}
	return false
}
