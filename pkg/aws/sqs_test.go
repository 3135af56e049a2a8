package aws

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapSNSEnvelope(t *testing.T) {
	inner := `{"reference":"SAUNI1001_1700000000000"}`

	tests := []struct {
		name string
		body string
		want string
	}{
		{"raw body", inner, inner},
		{"sns notification", `{"Type":"Notification","Message":"{\"reference\":\"SAUNI1001_1700000000000\"}"}`, inner},
		{"other envelope type", `{"Type":"SubscriptionConfirmation","Message":"x"}`, `{"Type":"SubscriptionConfirmation","Message":"x"}`},
		{"not json", "hello", "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnwrapSNSEnvelope(tt.body))
		})
	}
}

func TestDisabledMetrics(t *testing.T) {
	m := DisabledMetrics()
	assert.False(t, m.IsEnabled())
	assert.NoError(t, m.RecordCount(context.Background(), MetricHTTPRequests, nil))
	assert.NoError(t, m.RecordLatency(context.Background(), MetricHTTPLatency, time.Second, nil))

	var nilClient *MetricsClient
	assert.False(t, nilClient.IsEnabled())
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricHTTPRequests, nil))
}
