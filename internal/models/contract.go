package models

import (
	"encoding/json"
	"strings"
)

// ContractManifest is the resolved definition of a playable contract.
type ContractManifest struct {
	Metadata ContractMetadata `json:"Metadata"`
	Data     ContractData     `json:"Data"`
}

// ContractMetadata carries the contract's identity and mode flags.
type ContractMetadata struct {
	ID        string `json:"Id"`
	Title     string `json:"Title,omitempty"`
	Type      string `json:"Type"` // mission, usercreated, escalation, arcade, evergreen, contest, featured, creation, ghost
	InGroup   string `json:"InGroup,omitempty"`
	ScenePath string `json:"ScenePath,omitempty"`
	Location  string `json:"Location,omitempty"`

	Modules []ScoringModule `json:"Modules,omitempty"`

	CpdID                      string `json:"CpdId,omitempty"`
	UseContractProgressionData bool   `json:"UseContractProgressionData,omitempty"`
}

// ContractData holds the objective graph and bricks for a contract.
type ContractData struct {
	Objectives []*Objective `json:"Objectives"`
	Bricks     []string     `json:"Bricks,omitempty"`
}

// Objective is one tracked mission objective. Definition is the declarative
// state machine interpreted by the statemachine package; objectives without a
// definition are not tracked.
type Objective struct {
	ID         string               `json:"Id"`
	Category   string               `json:"Category,omitempty"` // primary or secondary
	Primary    bool                 `json:"Primary,omitempty"`
	Definition *ObjectiveDefinition `json:"Definition,omitempty"`
}

// IsPrimary reports whether the objective counts toward the arcade
// escalation preserve rule. Contracts express this either as a Category
// string or a legacy Primary flag.
func (o *Objective) IsPrimary() bool {
	return o.Primary || strings.EqualFold(o.Category, "primary")
}

// ObjectiveDefinition is the declarative FSM for one objective.
type ObjectiveDefinition struct {
	Context map[string]any `json:"Context,omitempty"`
	States  map[string]any `json:"States"`
}

// AsDefinition returns the definition in the generic map shape the
// statemachine evaluator consumes.
func (d *ObjectiveDefinition) AsDefinition() map[string]any {
	if d == nil {
		return nil
	}
	return map[string]any{"States": d.States}
}

// ScoringModule is one entry of a contract's Modules list. Exactly one module
// (discriminated by a Type suffix) supplies the scoring state machine; the
// rest become named settings.
type ScoringModule struct {
	Type               string           `json:"Type"`
	ScoringDefinitions []map[string]any `json:"ScoringDefinitions,omitempty"`

	raw map[string]any
}

// UnmarshalJSON decodes the typed fields and keeps the full body around so
// non-scoring modules can be flattened into settings with the discriminator
// stripped.
func (m *ScoringModule) UnmarshalJSON(data []byte) error {
	type alias ScoringModule
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = ScoringModule(a)
	return json.Unmarshal(data, &m.raw)
}

// Raw returns the module body as decoded from the manifest.
func (m *ScoringModule) Raw() map[string]any {
	return m.raw
}

// IsScoring reports whether this module supplies the scoring definition.
func (m *ScoringModule) IsScoring() bool {
	return strings.HasSuffix(strings.ToLower(m.Type), "scoring")
}

// SettingsKey is the name non-scoring modules are stored under: the last
// dot-separated segment of the type name.
func (m *ScoringModule) SettingsKey() string {
	if idx := strings.LastIndex(m.Type, "."); idx >= 0 {
		return m.Type[idx+1:]
	}
	return m.Type
}
