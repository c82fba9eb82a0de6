package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithoutEndpointDiscardsSpans(t *testing.T) {
	t.Setenv(EndpointEnv, "")

	shutdown, err := Init(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := Tracer("test").Start(context.Background(), "span")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTagsSpansWithScan(t *testing.T) {
	t.Setenv(EndpointEnv, "")

	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Options{ScanID: "scan-42", Profile: "crypto", Writer: &buf})
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "history.Extract")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "history.Extract")
	assert.Contains(t, out, "commitraider.scan_id")
	assert.Contains(t, out, "scan-42")
	assert.Contains(t, out, "commitraider.pattern_profile")
	assert.Contains(t, out, "CommitRaider")
}

func TestInstrumentsNilSafe(t *testing.T) {
	var inst *Instruments
	assert.NotPanics(t, func() {
		inst.RecordBatch(context.Background(), 10, 1)
		inst.RecordFindings(context.Background(), "vuln", 2)
	})
}

func TestNewInstruments(t *testing.T) {
	inst, err := NewInstruments()
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		inst.RecordBatch(context.Background(), 50, 2)
		inst.RecordFindings(context.Background(), "all", 3)
	})
}
