package security

import (
	"net/http"
	"sort"
	"time"
)

// Report is a read-only summary of an engine's security posture.
type Report struct {
	ProductionMode      bool
	SigningAlgorithm    string
	SessionStore        string
	SlidingExpiration   bool
	IdleTTL             time.Duration
	AbsoluteLifetime    time.Duration
	CookieSecure        bool
	CookieHTTPOnly      bool
	CookieSameSite      string
	LoginThrottleActive bool
	AuditActive         bool
	Groups              int
	RootGroups          []string
	Permissions         int
	SecuredOperations   int
	// RootOnlyOperations lists secured operations that no group grants by
	// name, so only a root grant can reach them.
	RootOnlyOperations []string
}

// ReportInput carries the configuration and registry facts a [Report] is built from.
type ReportInput struct {
	ProductionMode    bool
	SigningAlgorithm  string
	RedisBacked       bool
	SlidingExpiration bool
	IdleTTL           time.Duration
	AbsoluteLifetime  time.Duration
	CookieSecure      bool
	CookieHTTPOnly    bool
	CookieSameSite    http.SameSite
	MaxLoginFailures  int
	LoginCooldown     time.Duration
	ThrottleEnabled   bool
	AuditEnabled      bool
	Groups            map[string][]string
	RootGrant         string
	Permissions       int
	// Secured holds the qualified names of exposed secured operations.
	Secured []string
}

func BuildReport(input ReportInput) Report {
	store := "memory"
	if input.RedisBacked {
		store = "redis"
	}

	granted := make(map[string]struct{})
	var roots []string
	for group, names := range input.Groups {
		for _, name := range names {
			if name == input.RootGrant {
				roots = append(roots, group)
				continue
			}
			granted[name] = struct{}{}
		}
	}
	sort.Strings(roots)

	var rootOnly []string
	for _, op := range input.Secured {
		if _, ok := granted[op]; !ok {
			rootOnly = append(rootOnly, op)
		}
	}
	sort.Strings(rootOnly)

	return Report{
		ProductionMode:      input.ProductionMode,
		SigningAlgorithm:    input.SigningAlgorithm,
		SessionStore:        store,
		SlidingExpiration:   input.SlidingExpiration,
		IdleTTL:             input.IdleTTL,
		AbsoluteLifetime:    input.AbsoluteLifetime,
		CookieSecure:        input.CookieSecure,
		CookieHTTPOnly:      input.CookieHTTPOnly,
		CookieSameSite:      sameSiteName(input.CookieSameSite),
		LoginThrottleActive: input.ThrottleEnabled && input.RedisBacked && input.MaxLoginFailures > 0 && input.LoginCooldown > 0,
		AuditActive:         input.AuditEnabled,
		Groups:              len(input.Groups),
		RootGroups:          roots,
		Permissions:         input.Permissions,
		SecuredOperations:   len(input.Secured),
		RootOnlyOperations:  rootOnly,
	}
}

func sameSiteName(s http.SameSite) string {
	switch s {
	case http.SameSiteLaxMode:
		return "lax"
	case http.SameSiteStrictMode:
		return "strict"
	case http.SameSiteNoneMode:
		return "none"
	default:
		return "default"
	}
}
