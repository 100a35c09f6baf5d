package config

import "time"

// AllotmentConfig carries the counselling policy knobs.
type AllotmentConfig struct {
	// RoundWindow is the length of a round created by the admin trigger.
	RoundWindow time.Duration
	// AcceptanceGrace is added to the round end to get the acceptance deadline.
	AcceptanceGrace time.Duration
	// RunLockTTL bounds how long a crashed run can hold the distributed lock.
	RunLockTTL  time.Duration
	AutoMigrate bool
}

func LoadAllotmentConfig() AllotmentConfig {
	days := func(key string, d int) time.Duration {
		n := envInt(key, d)
		if n < 1 {
			n = d
		}
		return time.Duration(n) * 24 * time.Hour
	}
	cfg := AllotmentConfig{
		RoundWindow:     days("ROUND_WINDOW_DAYS", 7),
		AcceptanceGrace: days("ACCEPTANCE_GRACE_DAYS", 3),
		RunLockTTL:      envDur("RUN_LOCK_TTL", 10*time.Minute),
		AutoMigrate:     envBool("DB_AUTO_MIGRATE", false),
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = 10 * time.Minute
	}
	return cfg
}
