package sprayer

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/sprayer_project/internal/model/entities"
	controller "github.com/LeonardoBeccarini/sprayer_project/internal/services/spray-controller"
)

func TestObserveStatusKeepsNewestSequence(t *testing.T) {
	m := NewMetrics()

	m.observeStatus(entities.SprayStatus{State: entities.StateSpraying, Sequence: 2})
	m.observeStatus(entities.SprayStatus{State: entities.StateIdle, Sequence: 1})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.spraying), "an older status must not win")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sequence))

	m.observeStatus(entities.SprayStatus{State: entities.StateIdle, Sequence: 3})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.spraying))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sequence))
}

func TestStatusGaugesMatchControllerAfterConcurrentCommands(t *testing.T) {
	f := newFixture(t, 55)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cmd := entities.CommandStart
			if i%2 == 1 {
				cmd = entities.CommandStop
			}
			_, err := f.svc.SubmitCommand(ctx, cmd, controller.CommandOptions{})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st := f.svc.Status()
	require.Equal(t, uint64(50), st.Sequence)
	assert.Equal(t, float64(st.Sequence), testutil.ToFloat64(f.metrics.sequence))
	want := 0.0
	if st.IsSpraying() {
		want = 1
	}
	assert.Equal(t, want, testutil.ToFloat64(f.metrics.spraying))
}
