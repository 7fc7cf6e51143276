package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerification(OutcomeSuccess)
	c.RecordVerification(OutcomeSuccess)
	c.RecordVerification("UnknownId")
	c.RecordMarksLookup("NotVerified")
	c.RecordRestore(OutcomeRestored)
	c.RecordRestore(OutcomeSkipped)
	c.RecordResourceCreated(KindRole)
	c.RecordDuration(WorkflowVerify, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.verifications.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.verifications.WithLabelValues("UnknownId")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.marksLookups.WithLabelValues("NotVerified")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.restores.WithLabelValues(OutcomeRestored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.restores.WithLabelValues(OutcomeSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resourcesCreated.WithLabelValues(KindRole)))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)
}
