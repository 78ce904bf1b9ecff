// Package schemas holds the JSON Schema contract for every model-produced
// payload in the engine and validates raw model output against it before
// any caller is allowed to trust the object.
package schemas

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// #region embedded schemas

//go:embed action_proposal.json
var actionProposalSchema string

//go:embed critic_verdict.json
var criticVerdictSchema string

//go:embed capitalizer_hint.json
var capitalizerHintSchema string

//go:embed information_disruption.json
var informationDisruptionSchema string

//go:embed tension_reading.json
var tensionReadingSchema string

//go:embed mutator_proposal.json
var mutatorProposalSchema string

//go:embed new_agent_provisioning.json
var newAgentProvisioningSchema string

//go:embed convergence_hypotheses.json
var convergenceHypothesesSchema string

// Name identifies which embedded schema to validate a payload against.
type Name string

const (
	ActionProposal        Name = "action_proposal"
	CriticVerdict         Name = "critic_verdict"
	CapitalizerHint       Name = "capitalizer_hint"
	InformationDisruption Name = "information_disruption"
	TensionReading        Name = "tension_reading"
	MutatorProposal       Name = "mutator_proposal"
	NewAgentProvisioning  Name = "new_agent_provisioning"
	ConvergenceHypotheses Name = "convergence_hypotheses"
)

var registry = map[Name]string{
	ActionProposal:        actionProposalSchema,
	CriticVerdict:         criticVerdictSchema,
	CapitalizerHint:       capitalizerHintSchema,
	InformationDisruption: informationDisruptionSchema,
	TensionReading:        tensionReadingSchema,
	MutatorProposal:       mutatorProposalSchema,
	NewAgentProvisioning:  newAgentProvisioningSchema,
	ConvergenceHypotheses: convergenceHypothesesSchema,
}

// #endregion embedded schemas

// #region validate

// ValidationError reports every schema violation found in one payload. The
// Environment's retry loop (spec.md §4.1 step 4) catches only this error
// type; anything else propagates.
type ValidationError struct {
	Schema Name
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s schema validation failed: %s", e.Schema, strings.Join(e.Errors, "; "))
}

// Validate checks a decoded payload (map[string]interface{} or a struct)
// against the named schema.
func Validate(name Name, payload interface{}) error {
	raw, ok := registry[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	schemaLoader := gojsonschema.NewStringLoader(raw)
	documentLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate %s schema: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return &ValidationError{Schema: name, Errors: errs}
}

// ValidateJSON validates a raw JSON byte payload against the named schema.
func ValidateJSON(name Name, raw []byte) error {
	schemaRaw, ok := registry[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	schemaLoader := gojsonschema.NewStringLoader(schemaRaw)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate %s schema: %w", name, err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return &ValidationError{Schema: name, Errors: errs}
}

// RawSchema returns the embedded JSON Schema text for name, for handing to
// the Model Gateway as a response-schema constraint.
func RawSchema(name Name) (string, bool) {
	s, ok := registry[name]
	return s, ok
}

// #endregion validate
