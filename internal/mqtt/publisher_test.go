package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bikeshare-dashboard/internal/rentals"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient records publishes; the embedded interface covers the methods
// the publisher never calls.
type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	published map[string]interface{}
	retained  map[string]bool
	err       error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		published: make(map[string]interface{}),
		retained:  make(map[string]bool),
	}
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.published[topic] = payload
		c.retained[topic] = retained
	}
	return &fakeToken{err: c.err}
}

func testDashboard() *rentals.Dashboard {
	table := rentals.Table{
		{Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), TotalCount: 10, RegisteredCount: 7, CasualCount: 3, Temperature: 5, FeelsLikeTemperature: 5},
		{Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), TotalCount: 20, RegisteredCount: 14, CasualCount: 6, Temperature: 10, FeelsLikeTemperature: 5},
	}
	bounds, _ := table.Bounds()
	d := rentals.Build(table, bounds)
	return &d
}

func TestSummaryTopics(t *testing.T) {
	topics := summaryTopics("bikes", testDashboard())

	require.Equal(t, "30", topics["bikes/summary/total"])
	require.Equal(t, "9", topics["bikes/summary/casual"])
	require.Equal(t, "21", topics["bikes/summary/registered"])
	require.Equal(t, "2", topics["bikes/summary/rows"])
	require.Equal(t, "2023-01-01", topics["bikes/summary/start"])
	require.Equal(t, "2023-01-02", topics["bikes/summary/end"])
	require.Equal(t, "2.000", topics["bikes/summary/temp_actual_slope"])

	// feels-like is constant, so its trend is degenerate and not published
	_, ok := topics["bikes/summary/atemp_actual_slope"]
	require.False(t, ok)
}

func TestPublisher_Disabled(t *testing.T) {
	p, err := NewPublisher(PublisherConfig{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, p.Publish(testDashboard()))
	require.NoError(t, p.PublishHomeAssistantDiscovery())
	require.False(t, p.IsConnected())
	p.Close()
}

func TestPublisher_PublishesRetainedStatus(t *testing.T) {
	client := newFakeClient()
	p := &Publisher{client: client, breaker: newBreaker(), topicPrefix: "bikes", enabled: true}

	require.NoError(t, p.Publish(testDashboard()))

	payload, ok := client.published["bikes/summary/status"].([]byte)
	require.True(t, ok)
	require.True(t, client.retained["bikes/summary/status"])
	require.False(t, client.retained["bikes/summary/total"])

	var status Status
	require.NoError(t, json.Unmarshal(payload, &status))
	require.Equal(t, int64(30), status.Totals.Total)
	require.Equal(t, 2, status.Rows)
	require.NotNil(t, status.Trends["temp_actual"])
	require.Nil(t, status.Trends["atemp_actual"])
}

func TestPublisher_BreakerOpensAfterFailures(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("broker down")
	p := &Publisher{client: client, breaker: newBreaker(), topicPrefix: "bikes", enabled: true}

	for i := 0; i < 3; i++ {
		err := p.Publish(testDashboard())
		require.ErrorContains(t, err, "broker down")
	}

	err := p.Publish(testDashboard())
	require.ErrorContains(t, err, "suspended")
}

func TestPublisher_HomeAssistantDiscovery(t *testing.T) {
	client := newFakeClient()
	p := &Publisher{client: client, breaker: newBreaker(), topicPrefix: "bikes", enabled: true}

	require.NoError(t, p.PublishHomeAssistantDiscovery())

	payload, ok := client.published["homeassistant/sensor/bikeshare/total/config"].([]byte)
	require.True(t, ok)

	var config map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &config))
	require.Equal(t, "bikes/summary/total", config["state_topic"])
}
