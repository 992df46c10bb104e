// Package cliregistry describes the supported interactive CLIs: their
// executable name and the seed model configs offered for each.
package cliregistry

import (
	"fmt"
	"os/exec"

	"github.com/huanchong-99/gitcortex/internal/dbmodel"
)

// Descriptor is the static, non-persisted information about a supported CLI.
type Descriptor struct {
	Cli        dbmodel.CliType
	Executable string
	Args       []string // base flags every spawn includes, e.g. non-interactive mode
}

var descriptors = map[dbmodel.CliType]Descriptor{
	dbmodel.CliClaude: {Cli: dbmodel.CliClaude, Executable: "claude"},
	dbmodel.CliCodex:  {Cli: dbmodel.CliCodex, Executable: "codex"},
	dbmodel.CliGemini: {Cli: dbmodel.CliGemini, Executable: "gemini"},
}

// Lookup returns the Descriptor for cli, or an error if unsupported.
func Lookup(cli dbmodel.CliType) (Descriptor, error) {
	d, ok := descriptors[cli]
	if !ok {
		return Descriptor{}, fmt.Errorf("cliregistry: unsupported cli %q", cli)
	}
	return d, nil
}

// Detect reports whether cli's executable is resolvable on PATH.
func Detect(cli dbmodel.CliType) bool {
	d, err := Lookup(cli)
	if err != nil {
		return false
	}
	_, err = exec.LookPath(d.Executable)
	return err == nil
}

// SeedModelConfigs returns the default model catalog offered per CLI. A real
// deployment may supplement or override these via the model_configs table.
func SeedModelConfigs() []*dbmodel.ModelConfig {
	return []*dbmodel.ModelConfig{
		{ID: "claude-sonnet-4", Cli: dbmodel.CliClaude, Name: "claude-sonnet-4-20250514", Label: "Claude Sonnet 4", Default: true},
		{ID: "claude-opus-4", Cli: dbmodel.CliClaude, Name: "claude-opus-4-20250514", Label: "Claude Opus 4"},
		{ID: "codex-gpt-5", Cli: dbmodel.CliCodex, Name: "gpt-5-codex", Label: "GPT-5 Codex", Default: true},
		{ID: "gemini-2.5-pro", Cli: dbmodel.CliGemini, Name: "gemini-2.5-pro", Label: "Gemini 2.5 Pro", Default: true},
		{ID: "gemini-2.5-flash", Cli: dbmodel.CliGemini, Name: "gemini-2.5-flash", Label: "Gemini 2.5 Flash"},
	}
}
