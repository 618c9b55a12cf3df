package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMachineStatusChanged(t *testing.T) {
	counter := MachineStatusChanges.WithLabelValues("operational", "error", ReasonCriticalAlert)
	before := testutil.ToFloat64(counter)

	MachineStatusChanged("operational", "error", ReasonCriticalAlert)
	MachineStatusChanged("operational", "error", ReasonCriticalAlert)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Zero(t, testutil.ToFloat64(MachineStatusChanges.WithLabelValues("error", "operational", ReasonManual)))
}
