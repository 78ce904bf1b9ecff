package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kibbyd/negotiation-engine/internal/config"
	"github.com/kibbyd/negotiation-engine/internal/domain"
)

// #region json-fixture

// JSONFixture is the on-disk JSON structure for a replay fixture
// (cmd/fixture-export writes these; cmd/replay reads them back).
type JSONFixture struct {
	Description   string                      `json:"description"`
	Config        config.Config               `json:"config"`
	StartState    domain.StateObject          `json:"start_state"`
	TurnOrder     []string                    `json:"turn_order"`
	Scripts       map[string][]domain.ActionProposal `json:"scripts"`
	CreatedAgents []JSONCreatedAgentSpec      `json:"created_agents,omitempty"`
	Expected      JSONExpectedResult          `json:"expected"`
}

// JSONCreatedAgentSpec mirrors CreatedAgentSpec with JSON tags.
type JSONCreatedAgentSpec struct {
	AgentID            string                  `json:"agent_id"`
	Permissions        domain.AgentPermissions `json:"permissions"`
	TurnInjectionLogic string                  `json:"turn_injection_logic"`
	Script             []domain.ActionProposal `json:"script"`
}

// JSONExpectedResult mirrors ExpectedResult with JSON tags.
type JSONExpectedResult struct {
	TerminationReason string `json:"termination_reason"`
	TurnNumber        int    `json:"turn_number"`
	LogLength         int    `json:"log_length"`
}

// #endregion json-fixture

// #region load

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("replay: read fixture %s: %w", path, err)
	}
	var jf JSONFixture
	if err := json.Unmarshal(data, &jf); err != nil {
		return Fixture{}, fmt.Errorf("replay: parse fixture %s: %w", path, err)
	}
	return jf.ToFixture(), nil
}

// SaveFixture writes f to path as indented JSON (cmd/fixture-export).
func SaveFixture(path string, f Fixture) error {
	jf := FromFixture(f)
	data, err := json.MarshalIndent(jf, "", "  ")
	if err != nil {
		return fmt.Errorf("replay: marshal fixture: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ToFixture converts a JSONFixture into the in-memory Fixture replay runs.
func (jf JSONFixture) ToFixture() Fixture {
	createdAgents := make([]CreatedAgentSpec, 0, len(jf.CreatedAgents))
	for _, ca := range jf.CreatedAgents {
		createdAgents = append(createdAgents, CreatedAgentSpec{
			AgentID:            ca.AgentID,
			Permissions:        ca.Permissions,
			TurnInjectionLogic: ca.TurnInjectionLogic,
			Script:             ca.Script,
		})
	}
	return Fixture{
		Description:   jf.Description,
		Config:        jf.Config,
		StartState:    jf.StartState,
		TurnOrder:     jf.TurnOrder,
		Scripts:       jf.Scripts,
		CreatedAgents: createdAgents,
		Expected: ExpectedResult{
			TerminationReason: jf.Expected.TerminationReason,
			TurnNumber:        jf.Expected.TurnNumber,
			LogLength:         jf.Expected.LogLength,
		},
	}
}

// FromFixture converts an in-memory Fixture into its JSON-serializable form.
func FromFixture(f Fixture) JSONFixture {
	createdAgents := make([]JSONCreatedAgentSpec, 0, len(f.CreatedAgents))
	for _, ca := range f.CreatedAgents {
		createdAgents = append(createdAgents, JSONCreatedAgentSpec{
			AgentID:            ca.AgentID,
			Permissions:        ca.Permissions,
			TurnInjectionLogic: ca.TurnInjectionLogic,
			Script:             ca.Script,
		})
	}
	return JSONFixture{
		Description:   f.Description,
		Config:        f.Config,
		StartState:    f.StartState,
		TurnOrder:     f.TurnOrder,
		Scripts:       f.Scripts,
		CreatedAgents: createdAgents,
		Expected: JSONExpectedResult{
			TerminationReason: f.Expected.TerminationReason,
			TurnNumber:        f.Expected.TurnNumber,
			LogLength:         f.Expected.LogLength,
		},
	}
}

// #endregion load
