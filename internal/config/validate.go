package config

import "fmt"

// validate enforces required fields, numeric ranges, and non-empty
// per-camera zone tags per §4.13 / §7 ConfigInvalid. It never mutates
// cfg.
func validate(cfg *RuntimeConfig) error {
	if cfg.MQTTBaseTopic == "" {
		return fmt.Errorf("mqtt_base_topic is required")
	}
	if cfg.NVRBaseURL == "" {
		return fmt.Errorf("nvr_base_url is required")
	}
	if cfg.VisionEndpoint == "" {
		return fmt.Errorf("vision_endpoint is required")
	}
	if cfg.AgentGatewayURL == "" {
		return fmt.Errorf("agent_gateway_url is required")
	}
	if cfg.HubURL == "" {
		return fmt.Errorf("hub_url is required")
	}

	if cfg.CooldownSeconds <= 0 {
		return fmt.Errorf("cooldown_seconds must be > 0")
	}
	if cfg.VisionTimeoutSeconds <= 0 {
		return fmt.Errorf("vision_timeout_seconds must be > 0")
	}
	if cfg.ConfirmDelaySeconds < 0 || cfg.ConfirmTimeoutSeconds < 0 {
		return fmt.Errorf("confirm delay/timeout must be >= 0")
	}
	if cfg.RecentEventsWindowSeconds <= 0 {
		return fmt.Errorf("recent_events_window_seconds must be > 0")
	}
	if cfg.EventHistoryMaxLines <= 0 {
		return fmt.Errorf("event_history_max_lines must be > 0")
	}
	if cfg.IntakeQueueCapacity <= 0 {
		return fmt.Errorf("intake_queue_capacity must be > 0")
	}

	if cfg.QuietHours.StartHour < 0 || cfg.QuietHours.StartHour > 23 {
		return fmt.Errorf("quiet_hours.start_hour out of range")
	}
	if cfg.QuietHours.EndHour < 0 || cfg.QuietHours.EndHour > 23 {
		return fmt.Errorf("quiet_hours.end_hour out of range")
	}
	if cfg.EveningHour < 0 || cfg.EveningHour > 23 {
		return fmt.Errorf("evening_hour out of range")
	}
	if cfg.NightHour < 0 || cfg.NightHour > 23 {
		return fmt.Errorf("night_hour out of range")
	}

	for name, z := range cfg.Zones {
		if z.Zone == "" {
			return fmt.Errorf("zones[%s].zone must not be empty", name)
		}
	}

	return nil
}
