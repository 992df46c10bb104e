package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// InstructionType tags the JSON object the orchestrator LLM returns. Only
// these eight variants are recognized; any other tag is rejected.
type InstructionType string

const (
	InstructionSendToTerminal   InstructionType = "send_to_terminal"
	InstructionStartTask        InstructionType = "start_task"
	InstructionReviewCode       InstructionType = "review_code"
	InstructionFixIssues        InstructionType = "fix_issues"
	InstructionMergeBranch      InstructionType = "merge_branch"
	InstructionPauseWorkflow    InstructionType = "pause_workflow"
	InstructionCompleteWorkflow InstructionType = "complete_workflow"
	InstructionFailWorkflow     InstructionType = "fail_workflow"
)

// Instruction is the typed internal representation of an orchestrator
// instruction, compiled from the LLM's raw JSON content. Exactly one of the
// variant fields is populated, matching Kind.
type Instruction struct {
	Kind InstructionType

	SendToTerminal   *SendToTerminalInstruction
	StartTask        *StartTaskInstruction
	ReviewCode       *ReviewCodeInstruction
	FixIssues        *FixIssuesInstruction
	MergeBranch      *MergeBranchInstruction
	PauseWorkflow    *PauseWorkflowInstruction
	CompleteWorkflow *CompleteWorkflowInstruction
	FailWorkflow     *FailWorkflowInstruction
}

// SendToTerminalInstruction asks the bridge to write message to a terminal's stdin.
type SendToTerminalInstruction struct {
	TerminalID string `json:"terminal_id"`
	Message    string `json:"message"`
}

// StartTaskInstruction begins a pending task, sending instruction text to its first terminal.
type StartTaskInstruction struct {
	TaskID      string `json:"task_id"`
	Instruction string `json:"instruction"`
}

// ReviewCodeInstruction routes a commit to a reviewer terminal.
type ReviewCodeInstruction struct {
	TerminalID string `json:"terminal_id"`
	CommitHash string `json:"commit_hash"`
}

// FixIssuesInstruction routes reviewer-reported defects back to the coder terminal.
type FixIssuesInstruction struct {
	TerminalID string                `json:"terminal_id"`
	Issues     []dbmodel.ReviewIssue `json:"issues"`
}

// MergeBranchInstruction asks the merge coordinator to squash-merge one branch into another.
type MergeBranchInstruction struct {
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
}

// PauseWorkflowInstruction transitions the workflow to paused, recording why.
type PauseWorkflowInstruction struct {
	Reason string `json:"reason"`
}

// CompleteWorkflowInstruction begins the merge-to-completion path.
type CompleteWorkflowInstruction struct {
	Summary string `json:"summary"`
}

// FailWorkflowInstruction delegates to the error handler.
type FailWorkflowInstruction struct {
	Reason string `json:"reason"`
}

// taggedInstruction is the wire shape used only to read the `type` field
// before dispatching to the variant-specific unmarshal.
type taggedInstruction struct {
	Type InstructionType `json:"type"`
}

// requiredStringProps builds the `properties`/`required` fragment of a JSON
// Schema object requiring each name to be a non-empty string.
func requiredStringProps(names ...string) map[string]interface{} {
	props := make(map[string]interface{}, len(names))
	for _, n := range names {
		props[n] = map[string]interface{}{"type": "string", "minLength": 1}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   names,
	}
}

// instructionSchemas validates the LLM's typed JSON instruction payload
// against each variant's required fields before ParseInstruction trusts it
// enough to unmarshal into the strongly typed Go struct, so a malformed
// payload (a missing terminal_id, an empty reason) is rejected with a
// schema-shaped error instead of silently zero-valuing the field.
var instructionSchemas = compileInstructionSchemas()

func compileInstructionSchemas() map[InstructionType]*gojsonschema.Schema {
	sources := map[InstructionType]map[string]interface{}{
		InstructionSendToTerminal:   requiredStringProps("terminal_id", "message"),
		InstructionStartTask:        requiredStringProps("task_id", "instruction"),
		InstructionReviewCode:       requiredStringProps("terminal_id", "commit_hash"),
		InstructionFixIssues:        requiredStringProps("terminal_id"),
		InstructionMergeBranch:      requiredStringProps("source_branch", "target_branch"),
		InstructionPauseWorkflow:    requiredStringProps("reason"),
		InstructionCompleteWorkflow: requiredStringProps("summary"),
		InstructionFailWorkflow:     requiredStringProps("reason"),
	}

	compiled := make(map[InstructionType]*gojsonschema.Schema, len(sources))
	for kind, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(src))
		if err != nil {
			panic(fmt.Sprintf("orchestrator: invalid instruction schema for %s: %v", kind, err))
		}
		compiled[kind] = schema
	}
	return compiled
}

func formatSchemaErrors(errs []gojsonschema.ResultError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.String()
	}
	out := ""
	for i, m := range msgs {
		if i > 0 {
			out += "; "
		}
		out += m
	}
	return out
}

// ParseInstruction decodes the LLM's raw chat content into a typed
// Instruction. Unknown or malformed JSON is rejected — per spec §4.11 the
// caller logs and ignores it rather than retrying indefinitely.
func ParseInstruction(content []byte) (*Instruction, error) {
	var tag taggedInstruction
	if err := json.Unmarshal(content, &tag); err != nil {
		return nil, fmt.Errorf("orchestrator: malformed instruction JSON: %w", err)
	}

	if schema, ok := instructionSchemas[tag.Type]; ok {
		result, verr := schema.Validate(gojsonschema.NewBytesLoader(content))
		if verr != nil {
			return nil, fmt.Errorf("orchestrator: schema validation error for %s: %w", tag.Type, verr)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("orchestrator: %s instruction failed schema validation: %s",
				tag.Type, formatSchemaErrors(result.Errors()))
		}
	}

	inst := &Instruction{Kind: tag.Type}
	var err error
	switch tag.Type {
	case InstructionSendToTerminal:
		inst.SendToTerminal = &SendToTerminalInstruction{}
		err = json.Unmarshal(content, inst.SendToTerminal)
	case InstructionStartTask:
		inst.StartTask = &StartTaskInstruction{}
		err = json.Unmarshal(content, inst.StartTask)
	case InstructionReviewCode:
		inst.ReviewCode = &ReviewCodeInstruction{}
		err = json.Unmarshal(content, inst.ReviewCode)
	case InstructionFixIssues:
		inst.FixIssues = &FixIssuesInstruction{}
		err = json.Unmarshal(content, inst.FixIssues)
	case InstructionMergeBranch:
		inst.MergeBranch = &MergeBranchInstruction{}
		err = json.Unmarshal(content, inst.MergeBranch)
	case InstructionPauseWorkflow:
		inst.PauseWorkflow = &PauseWorkflowInstruction{}
		err = json.Unmarshal(content, inst.PauseWorkflow)
	case InstructionCompleteWorkflow:
		inst.CompleteWorkflow = &CompleteWorkflowInstruction{}
		err = json.Unmarshal(content, inst.CompleteWorkflow)
	case InstructionFailWorkflow:
		inst.FailWorkflow = &FailWorkflowInstruction{}
		err = json.Unmarshal(content, inst.FailWorkflow)
	default:
		return nil, fmt.Errorf("orchestrator: unknown instruction type %q", tag.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: malformed %s instruction: %w", tag.Type, err)
	}
	return inst, nil
}
