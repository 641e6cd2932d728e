package whitelist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker restricts ingestion to a set of sender domains. An empty domain
// list disables the restriction and every sender is accepted.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new sender domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalizedDomains := make([]string, len(domains))
	for i, domain := range domains {
		normalizedDomains[i] = strings.ToLower(strings.TrimSpace(domain))
	}

	if len(normalizedDomains) > 0 && logger != nil {
		logger.Info("Initialized sender allowlist", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// IsAllowed checks whether the sender's domain may submit invoices
func (c *Checker) IsAllowed(from string) bool {
	if len(c.domains) == 0 {
		return true
	}

	// Tolerate "Name <addr@domain>" forms.
	addr := from
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			addr = from[start+1 : end]
		}
	}

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(parts[1]))

	for _, allowed := range c.domains {
		if allowed == domain {
			if c.logger != nil {
				c.logger.Debug("Sender domain allowed",
					zap.String("domain", domain),
					zap.String("email", from))
			}
			return true
		}
	}

	return false
}
