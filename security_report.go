package authkit

import "time"

// SecurityReport summarizes the security-relevant posture of a built
// service for operators and startup logs.
type SecurityReport struct {
	ProviderKind         ProviderKind
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	Argon2               PasswordConfigReport
	RequireVerifiedEmail bool
	MaxSessionsPerUser   int
	RateLimitingActive   bool
	ProactiveRefresh     bool
	AuditEnabled         bool
	MetricsEnabled       bool
}

// PasswordConfigReport carries the effective argon2id parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport reports the effective posture of this service.
func (s *Service) SecurityReport() SecurityReport {
	if s == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProviderKind:     s.cfg.Provider.Kind,
		SigningAlgorithm: "HS256",
		AccessTTL:        s.cfg.TokenTTL,
		RefreshTTL:       s.cfg.RefreshTokenTTL,
		Argon2: PasswordConfigReport{
			Memory:      s.cfg.PasswordHash.Memory,
			Time:        s.cfg.PasswordHash.Time,
			Parallelism: s.cfg.PasswordHash.Parallelism,
			SaltLength:  s.cfg.PasswordHash.SaltLength,
			KeyLength:   s.cfg.PasswordHash.KeyLength,
		},
		RequireVerifiedEmail: s.cfg.RequireVerifiedEmail,
		MaxSessionsPerUser:   s.cfg.Session.MaxSessionsPerUser,
		RateLimitingActive: s.cfg.RateLimit.Enabled &&
			s.cfg.RateLimit.MaxAttempts > 0 &&
			s.cfg.RateLimit.Cooldown > 0,
		ProactiveRefresh: s.cfg.Refresh.Proactive,
		AuditEnabled:     s.cfg.Audit.Enabled,
		MetricsEnabled:   s.cfg.Metrics.Enabled,
	}
}
