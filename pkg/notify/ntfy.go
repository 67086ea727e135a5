// Package notify sends operational alerts for the dataset refresh pipeline
// via NTFY.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// AlertType represents different types of alerts
type AlertType string

const (
	AlertTypeRefreshFailed   AlertType = "refresh_failed"
	AlertTypeRefreshComplete AlertType = "refresh_complete"
	AlertTypeInfo            AlertType = "info"
)

// Priority levels for NTFY
type Priority int

const (
	PriorityMin     Priority = 1
	PriorityLow     Priority = 2
	PriorityDefault Priority = 3
	PriorityHigh    Priority = 4
	PriorityUrgent  Priority = 5
)

// NTFYConfig holds configuration for NTFY notifications
type NTFYConfig struct {
	ServerURL       string
	Topic           string
	Username        string // Optional basic auth
	Password        string // Optional basic auth
	Enabled         bool
	DefaultPriority Priority
}

// NTFYClient handles sending notifications via NTFY
type NTFYClient struct {
	config     NTFYConfig
	httpClient *http.Client
	mu         sync.Mutex

	// Rate limiting to prevent notification spam
	lastAlerts map[AlertType]time.Time
	minGap     time.Duration
}

// NTFYMessage represents a message to send
type NTFYMessage struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// NewNTFYClient creates a new NTFY client
func NewNTFYClient(config NTFYConfig) *NTFYClient {
	if config.ServerURL == "" {
		config.ServerURL = "https://ntfy.sh"
	}
	if config.DefaultPriority == 0 {
		config.DefaultPriority = PriorityDefault
	}

	return &NTFYClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		lastAlerts: make(map[AlertType]time.Time),
		minGap:     5 * time.Minute, // Minimum 5 minutes between same alert type
	}
}

// SendAlert sends a notification with rate limiting
func (c *NTFYClient) SendAlert(alertType AlertType, title, message string, priority Priority) error {
	if !c.IsEnabled() {
		return nil
	}

	c.mu.Lock()
	if lastTime, ok := c.lastAlerts[alertType]; ok {
		if time.Since(lastTime) < c.minGap {
			c.mu.Unlock()
			return nil // Skip, too soon
		}
	}
	c.lastAlerts[alertType] = time.Now()
	c.mu.Unlock()

	return c.send(title, message, priority, c.tagsForAlertType(alertType))
}

// SendImmediate sends a notification immediately without rate limiting
func (c *NTFYClient) SendImmediate(title, message string, priority Priority, tags []string) error {
	if !c.IsEnabled() {
		return nil
	}
	return c.send(title, message, priority, tags)
}

func (c *NTFYClient) send(title, message string, priority Priority, tags []string) error {
	msg := NTFYMessage{
		Topic:    c.config.Topic,
		Title:    title,
		Message:  message,
		Priority: int(priority),
		Tags:     tags,
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal NTFY message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.config.ServerURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create NTFY request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.config.Username != "" && c.config.Password != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send NTFY notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("NTFY returned error status: %d", resp.StatusCode)
	}

	return nil
}

func (c *NTFYClient) tagsForAlertType(alertType AlertType) []string {
	switch alertType {
	case AlertTypeRefreshFailed:
		return []string{"rotating_light", "x"}
	case AlertTypeRefreshComplete:
		return []string{"white_check_mark", "airplane"}
	default:
		return []string{"information_source"}
	}
}

// AlertRefreshFailed reports a failed dataset refresh.
func (c *NTFYClient) AlertRefreshFailed(reason string, err error) error {
	title := "Dataset Refresh Failed"
	message := fmt.Sprintf("Refresh (%s) failed: %v", reason, err)
	return c.SendAlert(AlertTypeRefreshFailed, title, message, PriorityHigh)
}

// AlertRefreshComplete reports a completed dataset refresh.
func (c *NTFYClient) AlertRefreshComplete(version string, routeCount, airportCount int) error {
	title := "Dataset Refreshed"
	message := fmt.Sprintf("Snapshot %s: %d routes, %d airports", version, routeCount, airportCount)
	return c.SendAlert(AlertTypeRefreshComplete, title, message, PriorityLow)
}

// IsEnabled returns whether notifications are enabled
func (c *NTFYClient) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Enabled && c.config.Topic != ""
}
