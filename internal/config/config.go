// Package config owns the single authoritative copy of RuntimeConfig.
// It loads the JSON document at startup, validates it, watches the
// file for changes with fsnotify, and hands out immutable snapshots
// so every in-flight event sees a stable configuration for its whole
// lifetime even if a reload happens mid-pipeline.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ZoneConfig carries the per-camera policy tags used by the Policy
// Engine and the zone-to-light entity map used by the Action
// Executor.
type ZoneConfig struct {
	Zone          string   `json:"zone"`
	Notes         string   `json:"notes"`
	LightEntities []string `json:"light_entities,omitempty"`
}

// QuietHours is a local-time window, e.g. 22:00-06:00, in which
// audible actions are suppressed unless the risk is critical.
type QuietHours struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Phases toggles optional pipeline stages.
type Phases struct {
	ConfirmationEnabled bool `json:"confirmation_enabled"`
}

// RuntimeConfig is every tunable the bridge needs, loaded as one JSON
// document (§3 "RuntimeConfig" in the spec).
type RuntimeConfig struct {
	// Bus
	MQTTHost      string `json:"mqtt_host"`
	MQTTPort      int    `json:"mqtt_port"`
	MQTTUsername  string `json:"mqtt_username"`
	MQTTPassword  string `json:"mqtt_password"`
	MQTTBaseTopic string `json:"mqtt_base_topic"`

	// NVR
	NVRBaseURL string `json:"nvr_base_url"`

	// Vision
	VisionEndpoint         string `json:"vision_endpoint"`
	VisionFallbackEndpoint string `json:"vision_fallback_endpoint,omitempty"`
	VisionModel            string `json:"vision_model"`
	VisionTimeoutSeconds   int    `json:"vision_timeout_seconds"`

	// Agent gateway
	AgentGatewayURL string   `json:"agent_gateway_url"`
	AgentToken      string   `json:"agent_token"`
	AgentChannel    string   `json:"agent_channel"`
	AgentRecipients []string `json:"agent_recipients"`

	// Smart-home hub
	HubURL            string `json:"hub_url"`
	HubToken          string `json:"hub_token"`
	AlarmEntity       string `json:"alarm_entity"`
	SpeakerEntity     string `json:"speaker_entity"`
	HomeModeSensor    string `json:"home_mode_sensor"`
	KnownFacesSensor  string `json:"known_faces_sensor"`

	// Per-camera config
	Zones map[string]ZoneConfig `json:"zones"`

	// Timings
	CooldownSeconds            int `json:"cooldown_seconds"`
	SnapshotDelaySeconds       int `json:"snapshot_delay_seconds"`
	ConfirmDelaySeconds        int `json:"confirm_delay_seconds"`
	ConfirmTimeoutSeconds      int `json:"confirm_timeout_seconds"`
	RecentEventsWindowSeconds  int `json:"recent_events_window_seconds"`
	StatusIntervalSeconds      int `json:"status_interval_seconds"`
	HomeStateCacheSeconds      int `json:"home_state_cache_seconds"`
	EventHistoryMaxLines       int `json:"event_history_max_lines"`
	DeliveryTimeoutSeconds     int `json:"delivery_timeout_seconds"`
	IntakeQueueCapacity        int `json:"intake_queue_capacity"`

	QuietHours QuietHours `json:"quiet_hours"`
	EveningHour int       `json:"evening_hour"`
	NightHour   int       `json:"night_hour"`

	Phases Phases `json:"phases"`

	// Filesystem
	DetectionStoreDir string `json:"detection_store_dir"`
	StagingDir        string `json:"staging_dir"`
	HistoryFilePath   string `json:"history_file_path"`

	// Audit / users — parsed but otherwise unused and not validated; the
	// bridge itself performs no authentication of the upstream bus
	// (see spec Non-goals).
	AuditSigningKey string   `json:"audit_signing_key,omitempty"`
	Users           []string `json:"users,omitempty"`
}

// InQuietHours reports whether localHour falls inside the configured
// quiet-hours window. The window may wrap past midnight (e.g. 22-6).
func (c *RuntimeConfig) InQuietHours(localHour int) bool {
	start, end := c.QuietHours.StartHour, c.QuietHours.EndHour
	if start == end {
		return false
	}
	if start < end {
		return localHour >= start && localHour < end
	}
	// wraps past midnight
	return localHour >= start || localHour < end
}

// TimeOfDayFor buckets localHour into day/evening/night against the
// configured evening and night hour bands and the quiet-hours window:
// night is [night_hour,24) plus every hour inside quiet hours, evening
// is [evening_hour,night_hour) outside quiet hours, and every other
// hour is day.
func (c *RuntimeConfig) TimeOfDayFor(localHour int) string {
	switch {
	case localHour >= c.NightHour || c.InQuietHours(localHour):
		return "night"
	case localHour >= c.EveningHour:
		return "evening"
	default:
		return "day"
	}
}

// Store owns the authoritative RuntimeConfig and serves immutable
// snapshots. Safe for concurrent use.
type Store struct {
	path string
	cur  atomic.Pointer[RuntimeConfig]
	watcher *fsnotify.Watcher
}

// Load reads and validates the config at path, returning a Store
// primed with that snapshot. A load failure here is ConfigInvalid and
// fatal: the process refuses to start.
func Load(path string) (*Store, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Store{path: path}
	s.cur.Store(cfg)
	return s, nil
}

// Snapshot returns the current immutable configuration. Callers must
// not mutate the returned value.
func (s *Store) Snapshot() *RuntimeConfig {
	return s.cur.Load()
}

// Watch starts an fsnotify watch on the config file and reloads on
// write/create events, ignoring events that arrive within 200ms of the
// previous reload. A reload that fails validation is logged and the
// previous snapshot is kept (ConfigInvalid policy, §7). Watch returns
// once the watch is set up; the watching goroutine runs until the
// watcher is closed or stop is closed.
func (s *Store) Watch(stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	s.watcher = w
	if err := w.Add(s.path); err != nil {
		w.Close()
		return fmt.Errorf("config: watch %s: %w", s.path, err)
	}

	go func() {
		defer w.Close()
		var lastReload time.Time
		for {
			select {
			case <-stop:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				// debounce: editors sometimes fire multiple events per save
				if time.Since(lastReload) < 200*time.Millisecond {
					continue
				}
				lastReload = time.Now()
				s.reload()
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[config] watcher error: %v", werr)
			}
		}
	}()
	return nil
}

func (s *Store) reload() {
	cfg, err := loadFile(s.path)
	if err != nil {
		log.Printf("[config] reload failed, keeping previous snapshot: %v", err)
		return
	}
	s.cur.Store(cfg)
	log.Printf("[config] reloaded from %s", s.path)
}

func loadFile(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid %s: %w", path, err)
	}

	return cfg, nil
}

func defaults() *RuntimeConfig {
	return &RuntimeConfig{
		MQTTHost:                  "localhost",
		MQTTPort:                  1883,
		MQTTBaseTopic:             "security-vision/cameras",
		VisionTimeoutSeconds:      60,
		CooldownSeconds:           30,
		SnapshotDelaySeconds:      3,
		ConfirmDelaySeconds:       4,
		ConfirmTimeoutSeconds:     15,
		RecentEventsWindowSeconds: 600,
		StatusIntervalSeconds:     30,
		HomeStateCacheSeconds:     30,
		EventHistoryMaxLines:      5000,
		DeliveryTimeoutSeconds:    20,
		IntakeQueueCapacity:       256,
		EveningHour:               18,
		NightHour:                 22,
		QuietHours:                QuietHours{StartHour: 22, EndHour: 6},
		DetectionStoreDir:         "ai-snapshots",
		StagingDir:                "ai-snapshots",
		HistoryFilePath:           "history.jsonl",
	}
}
