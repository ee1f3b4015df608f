package models

import "time"

// MetricsSnapshot is the rolling operational view exposed to dashboards and
// to the risk scorer's behavior signals.
type MetricsSnapshot struct {
	OnlineUsers         int     `json:"online_users"`
	RequestsPerMinute   int     `json:"requests_per_minute"`
	ToolsUsedToday      int64   `json:"tools_used_today"`
	RevenueToday        float64 `json:"revenue_today"`
	BlockedAttemptsToday int64  `json:"blocked_attempts_today"`
	ErrorRatePercent    float64 `json:"error_rate_percent"`
	AvgResponseTimeMs   float64 `json:"avg_response_time_ms"`
	TopTools            []NamedCount `json:"top_tools,omitempty"`
	TopIPs              []NamedCount `json:"top_ips,omitempty"`
	Timestamp           time.Time    `json:"timestamp"`
}

// NamedCount is a leaderboard entry.
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// MetricsAlert is a threshold-crossing observation. Alerts never trigger
// enforcement; they exist for operators only.
type MetricsAlert struct {
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}
