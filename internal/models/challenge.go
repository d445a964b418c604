package models

// Challenge is one tracked feat, driven by the same declarative state
// machine as objectives. Challenges without a definition are progress-only
// (area discovery).
type Challenge struct {
	ID         string               `json:"Id"`
	Name       string               `json:"Name,omitempty"`
	Tags       []string             `json:"Tags,omitempty"`
	Definition *ObjectiveDefinition `json:"Definition,omitempty"`

	// Area-discovery challenges count distinct discovered areas instead of
	// running a machine.
	RequiredAreas int `json:"RequiredAreas,omitempty"`
}

// IsAreaDiscovery reports whether the challenge is progress-counted by
// discovered areas.
func (c *Challenge) IsAreaDiscovery() bool {
	return c.RequiredAreas > 0
}
