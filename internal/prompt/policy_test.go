package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecideAsksUserWhenAutoConfirmDisabled(t *testing.T) {
	action, _ := Decide(Detected{Kind: KindEnterConfirm, Confidence: 0.95}, false)
	require.Equal(t, ActionAskUser, action)
}

func TestDecideAsksUserForPassword(t *testing.T) {
	action, _ := Decide(Detected{Kind: KindPassword, Confidence: 0.95}, true)
	require.Equal(t, ActionAskUser, action)
}

func TestDecideAutoRespondsToEnterConfirm(t *testing.T) {
	action, resp := Decide(Detected{Kind: KindEnterConfirm, Confidence: 0.95}, true)
	require.Equal(t, ActionAutoRespond, action)
	require.Equal(t, "\n", resp)
}

func TestDecideEscalatesDangerousPrompt(t *testing.T) {
	action, _ := Decide(Detected{Kind: KindEnterConfirm, Confidence: 0.95, DangerousKeywords: []string{"rm -rf"}}, true)
	require.Equal(t, ActionAskLLM, action)
}

func TestDecideEscalatesYesNoToLLM(t *testing.T) {
	action, _ := Decide(Detected{Kind: KindYesNo, Confidence: 0.9}, true)
	require.Equal(t, ActionAskLLM, action)
}

func TestDecisionKeystrokesYes(t *testing.T) {
	yes := true
	d := Decision{Yes: &yes}
	require.Equal(t, "y\n", d.Keystrokes())
}

func TestDecisionKeystrokesChoiceIndex(t *testing.T) {
	idx := 2
	d := Decision{ChoiceIndex: &idx}
	require.Equal(t, "2\n", d.Keystrokes())
}

func TestDecisionKeystrokesLiteral(t *testing.T) {
	d := Decision{Literal: "my-project"}
	require.Equal(t, "my-project\n", d.Keystrokes())
}
