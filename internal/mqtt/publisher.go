package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"bikeshare-dashboard/internal/rentals"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("publish timed out")

type Publisher struct {
	client      mqtt.Client
	breaker     *gobreaker.CircuitBreaker
	topicPrefix string
	enabled     bool
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

// Status is the retained JSON document published after every reload.
type Status struct {
	Start     string                  `json:"start"`
	End       string                  `json:"end"`
	Rows      int                     `json:"rows"`
	Totals    rentals.Totals          `json:"totals"`
	Trends    map[string]*rentals.Fit `json:"trends"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Println("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) {
		log.Printf("MQTT broker %s not reachable yet, retrying in background", cfg.Broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{
		client:      client,
		breaker:     newBreaker(),
		topicPrefix: cfg.TopicPrefix,
		enabled:     true,
	}, nil
}

// newBreaker stops publishing for a while after repeated broker failures so
// reloads are not held up by an unreachable broker.
func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "mqtt-publisher",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("MQTT circuit breaker %s: %s -> %s", name, from, to)
		},
	})
}

// Publish sends the dashboard summary as individual topics plus a retained
// status document.
func (p *Publisher) Publish(d *rentals.Dashboard) error {
	if !p.enabled {
		return nil
	}

	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.publishSummary(d)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("mqtt publishing suspended: %w", err)
	}
	return err
}

func (p *Publisher) publishSummary(d *rentals.Dashboard) error {
	for topic, payload := range summaryTopics(p.topicPrefix, d) {
		if err := p.send(topic, false, payload); err != nil {
			log.Printf("Failed to publish to %s: %v", topic, err)
		}
	}

	statusJSON, err := json.Marshal(newStatus(d, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := p.send(p.topicPrefix+"/summary/status", true, statusJSON); err != nil {
		return fmt.Errorf("failed to publish status: %w", err)
	}
	return nil
}

func (p *Publisher) send(topic string, retained bool, payload interface{}) error {
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errPublishTimeout
	}
	return token.Error()
}

func summaryTopics(prefix string, d *rentals.Dashboard) map[string]string {
	base := prefix + "/summary/"
	topics := map[string]string{
		base + "total":      strconv.FormatInt(d.Totals.Total, 10),
		base + "casual":     strconv.FormatInt(d.Totals.Casual, 10),
		base + "registered": strconv.FormatInt(d.Totals.Registered, 10),
		base + "rows":       strconv.Itoa(len(d.Rows)),
		base + "start":      d.Range.Start.Format(rentals.DateLayout),
		base + "end":        d.Range.End.Format(rentals.DateLayout),
	}
	for _, trend := range d.Trends {
		if trend.Fit == nil {
			continue
		}
		topics[base+string(trend.Predictor)+"_slope"] = strconv.FormatFloat(trend.Fit.Slope, 'f', 3, 64)
	}
	return topics
}

func newStatus(d *rentals.Dashboard, now time.Time) Status {
	status := Status{
		Start:     d.Range.Start.Format(rentals.DateLayout),
		End:       d.Range.End.Format(rentals.DateLayout),
		Rows:      len(d.Rows),
		Totals:    d.Totals,
		Trends:    make(map[string]*rentals.Fit, len(d.Trends)),
		UpdatedAt: now,
	}
	for _, trend := range d.Trends {
		status.Trends[string(trend.Predictor)] = trend.Fit
	}
	return status
}

func (p *Publisher) PublishHomeAssistantDiscovery() error {
	if !p.enabled {
		return nil
	}

	sensors := []struct {
		Name       string
		ID         string
		Unit       string
		StateTopic string
	}{
		{"Total Rentals", "total", "rentals", "total"},
		{"Casual Rentals", "casual", "rentals", "casual"},
		{"Registered Rentals", "registered", "rentals", "registered"},
		{"Days Loaded", "rows", "days", "rows"},
		{"Temperature Trend", "temp_slope", "rentals/°C", "temp_actual_slope"},
		{"Feels-Like Trend", "atemp_slope", "rentals/°C", "atemp_actual_slope"},
	}

	for _, sensor := range sensors {
		discoveryTopic := fmt.Sprintf("homeassistant/sensor/bikeshare/%s/config", sensor.ID)

		config := map[string]interface{}{
			"name":                fmt.Sprintf("Bikeshare %s", sensor.Name),
			"unique_id":           fmt.Sprintf("bikeshare_%s", sensor.ID),
			"state_topic":         fmt.Sprintf("%s/summary/%s", p.topicPrefix, sensor.StateTopic),
			"unit_of_measurement": sensor.Unit,
			"state_class":         "measurement",
			"device": map[string]interface{}{
				"identifiers":  []string{"bikeshare_dashboard"},
				"name":         "Bikeshare Dashboard",
				"manufacturer": "bikeshare-dashboard",
			},
		}

		payload, _ := json.Marshal(config)
		if err := p.send(discoveryTopic, true, payload); err != nil {
			return fmt.Errorf("failed to publish discovery for %s: %w", sensor.ID, err)
		}
	}

	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
