package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	require.NotPanics(t, RegisterDefault)
	require.NotPanics(t, RegisterDefault)

	families, err := Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSetPhase(t *testing.T) {
	phases := []string{"UNINITIALIZED", "INITIALIZING", "AUTHENTICATED"}

	SetPhase("INITIALIZING", phases)
	assert.Equal(t, 0.0, testutil.ToFloat64(Phase.WithLabelValues("UNINITIALIZED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Phase.WithLabelValues("INITIALIZING")))

	SetPhase("AUTHENTICATED", phases)
	assert.Equal(t, 0.0, testutil.ToFloat64(Phase.WithLabelValues("INITIALIZING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Phase.WithLabelValues("AUTHENTICATED")))
}
