package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerDefaultsToInfoLevel(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "bogus", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)
	require.NotNil(t, log.Zap())
	require.True(t, log.Zap().Core().Enabled(zap.InfoLevel))
	require.False(t, log.Zap().Core().Enabled(zap.DebugLevel))
}

func TestWithFieldsAccumulates(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)

	withWorkflow := log.WithWorkflowID("wf-1")
	withBoth := withWorkflow.WithTerminalID("term-1")

	require.Len(t, withWorkflow.fields, 1)
	require.Len(t, withBoth.fields, 2)
}

func TestWithContextExtractsCorrelationID(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "info", Format: "text", OutputPath: "stdout"})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), CorrelationIDKey, "abc-123")
	withCtx := log.WithContext(ctx)
	require.Len(t, withCtx.fields, 1)

	plain := log.WithContext(context.Background())
	require.Same(t, log, plain)
}

func TestDefaultIsSingleton(t *testing.T) {
	a := Default()
	b := Default()
	require.Same(t, a, b)
}

func TestWithErrorAddsField(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "info", Format: "json", OutputPath: "stdout"})
	require.NoError(t, err)

	withErr := log.WithError(assertErr)
	require.Len(t, withErr.fields, 1)
	require.Equal(t, zap.Error(assertErr).Key, withErr.fields[0].Key)
}

var assertErr = errDummy{}

type errDummy struct{}

func (errDummy) Error() string { return "dummy" }
