package netapi

import (
	isec "github.com/MrEthical07/netapi/internal/security"
	"github.com/MrEthical07/netapi/registry"
	"github.com/MrEthical07/netapi/security"
)

// SecurityReport is a read-only snapshot of the engine's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport = isec.Report

// SecurityReport summarizes signing, session, cookie, and permission settings.
// RootOnlyOperations lists secured operations that no group grants by name.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	var secured []string
	for _, svc := range e.services.Services() {
		for _, op := range svc.Operations() {
			if op.Is(registry.FlagExposed) && op.Is(registry.FlagSecured) {
				secured = append(secured, op.QualifiedName())
			}
		}
	}

	cfg := e.config
	return isec.BuildReport(isec.ReportInput{
		ProductionMode:    cfg.Security.ProductionMode,
		SigningAlgorithm:  cfg.JWT.SigningMethod,
		RedisBacked:       e.redis != nil,
		SlidingExpiration: cfg.Session.SlidingExpiration,
		IdleTTL:           cfg.Session.IdleTTL,
		AbsoluteLifetime:  cfg.Session.AbsoluteSessionLifetime,
		CookieSecure:      cfg.Cookie.Secure,
		CookieHTTPOnly:    cfg.Cookie.HTTPOnly,
		CookieSameSite:    cfg.Cookie.SameSite,
		MaxLoginFailures:  cfg.Security.MaxLoginFailures,
		LoginCooldown:     cfg.Security.LoginCooldown,
		ThrottleEnabled:   e.throttle != nil,
		AuditEnabled:      cfg.Audit.Enabled,
		Groups:            cfg.Security.Groups,
		RootGrant:         security.RootGrant,
		Permissions:       e.policy.Permissions(),
		Secured:           secured,
	})
}
