// Package ratelimit implements fixed-window request limiting and progressive
// slow-down on top of the shared state store.
//
// A Policy names a class of traffic, its window and its ceiling. The Limiter
// keeps one Record per (class, identity) and resets it when the window has
// elapsed. How the identity is derived from a request is described by the
// policy's KeyStrategy and resolved by the HTTP middleware.
package ratelimit

import (
	"fmt"
	"time"
)

// Class identifies a rate limit policy
type Class string

const (
	ClassGeneral Class = "general"
	ClassAuth    Class = "auth"
	ClassAPI     Class = "api"
	ClassTrading Class = "trading"
	ClassTenant  Class = "tenant"
)

// KeyStrategy selects the identity a policy counts against
type KeyStrategy int

const (
	// KeyByIP counts per client IP
	KeyByIP KeyStrategy = iota
	// KeyByUserOrIP counts per authenticated user, falling back to client IP
	KeyByUserOrIP
	// KeyByTenantIP counts per tenant and client IP pair
	KeyByTenantIP
)

// Policy defines one rate limit class
type Policy struct {
	Class  Class
	Window time.Duration
	Max    int
	Key    KeyStrategy
	// SkipSuccessful refunds requests whose response was 2xx
	SkipSuccessful bool
	// Message overrides the rejection message
	Message string
}

// Validate checks the policy is usable
func (p Policy) Validate() error {
	if p.Class == "" {
		return fmt.Errorf("rate limit policy requires a class")
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %s: window must be positive", p.Class)
	}
	if p.Max <= 0 {
		return fmt.Errorf("rate limit policy %s: max must be positive", p.Class)
	}
	return nil
}

// GeneralPolicy limits each IP to 100 requests per 15 minutes
func GeneralPolicy() Policy {
	return Policy{
		Class:  ClassGeneral,
		Window: 15 * time.Minute,
		Max:    100,
		Key:    KeyByIP,
	}
}

// AuthPolicy limits each IP to 5 unsuccessful authentication requests per
// 15 minutes
func AuthPolicy() Policy {
	return Policy{
		Class:          ClassAuth,
		Window:         15 * time.Minute,
		Max:            5,
		Key:            KeyByIP,
		SkipSuccessful: true,
	}
}

// APIPolicy limits each user (or IP when anonymous) to 60 requests per minute
func APIPolicy() Policy {
	return Policy{
		Class:  ClassAPI,
		Window: time.Minute,
		Max:    60,
		Key:    KeyByUserOrIP,
	}
}

// TradingPolicy limits each IP to 30 trading requests per minute
func TradingPolicy() Policy {
	return Policy{
		Class:   ClassTrading,
		Window:  time.Minute,
		Max:     30,
		Key:     KeyByIP,
		Message: "Trading rate limit exceeded, please try again later.",
	}
}

// TenantPolicy limits each tenant/IP pair
func TenantPolicy(window time.Duration, max int) Policy {
	return Policy{
		Class:   ClassTenant,
		Window:  window,
		Max:     max,
		Key:     KeyByTenantIP,
		Message: "Tenant rate limit exceeded",
	}
}
