package pool

import "time"

// ConnectionStats holds the counters kept for one host session
type ConnectionStats struct {
	TotalConnections  int
	ActiveConnections int
	IdleConnections   int
	RequestsCount     int64
	ErrorsCount       int64
	TimeoutsCount     int64
	CreatedAt         time.Time
}

func newConnectionStats(limit, perHost int) *ConnectionStats {
	return &ConnectionStats{
		TotalConnections: limit,
		IdleConnections:  perHost,
		CreatedAt:        time.Now(),
	}
}

// ErrorRate is errors per request, 0 when no request was made
func (s *ConnectionStats) ErrorRate() float64 {
	return float64(s.ErrorsCount) / float64(max64(1, s.RequestsCount))
}

// TimeoutRate is timeouts per request, 0 when no request was made
func (s *ConnectionStats) TimeoutRate() float64 {
	return float64(s.TimeoutsCount) / float64(max64(1, s.RequestsCount))
}

// Uptime is the time elapsed since the session was created
func (s *ConnectionStats) Uptime() time.Duration {
	return time.Since(s.CreatedAt)
}

// HostStats is the read-only view of a host session returned by the stats APIs
type HostStats struct {
	Host               string    `json:"host"`
	TotalConnections   int       `json:"total_connections"`
	ConnectionsPerHost int       `json:"connections_per_host"`
	ActiveConnections  int       `json:"active_connections"`
	IdleConnections    int       `json:"idle_connections"`
	RequestsCount      int64     `json:"requests_count"`
	ErrorsCount        int64     `json:"errors_count"`
	TimeoutsCount      int64     `json:"timeouts_count"`
	ErrorRate          float64   `json:"error_rate"`
	TimeoutRate        float64   `json:"timeout_rate"`
	UptimeSeconds      float64   `json:"uptime"`
	CreatedAt          time.Time `json:"created_at"`
}

func (s *ConnectionStats) snapshot(host string, perHost int) HostStats {
	return HostStats{
		Host:               host,
		TotalConnections:   s.TotalConnections,
		ConnectionsPerHost: perHost,
		ActiveConnections:  s.ActiveConnections,
		IdleConnections:    s.IdleConnections,
		RequestsCount:      s.RequestsCount,
		ErrorsCount:        s.ErrorsCount,
		TimeoutsCount:      s.TimeoutsCount,
		ErrorRate:          s.ErrorRate(),
		TimeoutRate:        s.TimeoutRate(),
		UptimeSeconds:      s.Uptime().Seconds(),
		CreatedAt:          s.CreatedAt,
	}
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
