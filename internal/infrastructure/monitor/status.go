package monitor

import "time"

type Status struct {
	Store        bool      `json:"store"`
	Redis        bool      `json:"redis"`
	RedisEnabled bool      `json:"redis_enabled"`
	LastCheck    time.Time `json:"last_check"`
}

func (s Status) ready() bool {
	if s.LastCheck.IsZero() {
		return false
	}
	return s.Store && (s.Redis || !s.RedisEnabled)
}
