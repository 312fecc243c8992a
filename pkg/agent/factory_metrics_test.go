package agent

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/pkg/agent/llm"
	"intake/pkg/agent/middleware/metrics"
	"intake/pkg/config"
)

func TestWrapRecordsModelCalls(t *testing.T) {
	tests := []struct {
		name       string
		registerer bool
		want       int
	}{
		{name: "registry records", registerer: true, want: 1},
		{name: "nil registerer stays silent", registerer: false, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			opts := Options{}
			if tt.registerer {
				opts.Registerer = reg
			}

			client := Wrap(&flakyClient{}, config.Default().AI, opts)
			ctx := metrics.WithOperation(context.Background(), "extract")
			_, err := client.Complete(ctx, llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
			require.NoError(t, err)

			count, err := testutil.GatherAndCount(reg, "intake_llm_requests_total")
			require.NoError(t, err)
			assert.Equal(t, tt.want, count)
		})
	}
}
