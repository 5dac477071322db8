package auth

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim names consulted for caller binding. Azure AD v2 tokens carry azp;
// v1 tokens carry appid.
const (
	ClaimAuthorizedParty = "azp"
	ClaimApplicationID   = "appid"
)

// ---------------------------------------------------------------------------
// ClaimsSet
// ---------------------------------------------------------------------------

// ClaimsSet is the payload of a token that passed signature verification
// and every claims check. It is only ever built by
// [TokenValidationService]; there is no exported constructor.
type ClaimsSet struct {
	subject   string
	issuer    string
	audience  []string
	expiresAt time.Time
	notBefore *time.Time
	issuedAt  *time.Time
	claims    map[string]any
}

func newClaimsSet(mc jwt.MapClaims) *ClaimsSet {
	cs := &ClaimsSet{claims: make(map[string]any, len(mc))}
	for k, v := range mc {
		cs.claims[k] = v
	}
	cs.subject, _ = mc.GetSubject()
	cs.issuer, _ = mc.GetIssuer()
	if aud, err := mc.GetAudience(); err == nil {
		cs.audience = []string(aud)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		cs.expiresAt = exp.Time
	}
	if nbf, err := mc.GetNotBefore(); err == nil && nbf != nil {
		t := nbf.Time
		cs.notBefore = &t
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		cs.issuedAt = &t
	}
	return cs
}

// Subject returns the sub claim.
func (c *ClaimsSet) Subject() string { return c.subject }

// Issuer returns the iss claim.
func (c *ClaimsSet) Issuer() string { return c.issuer }

// Audience returns a copy of the aud claim as a list.
func (c *ClaimsSet) Audience() []string { return slices.Clone(c.audience) }

// ExpiresAt returns the exp claim.
func (c *ClaimsSet) ExpiresAt() time.Time { return c.expiresAt }

// NotBefore returns the nbf claim, if the token had one.
func (c *ClaimsSet) NotBefore() (time.Time, bool) {
	if c.notBefore == nil {
		return time.Time{}, false
	}
	return *c.notBefore, true
}

// IssuedAt returns the iat claim, if the token had one.
func (c *ClaimsSet) IssuedAt() (time.Time, bool) {
	if c.issuedAt == nil {
		return time.Time{}, false
	}
	return *c.issuedAt, true
}

// Claim returns the named claim as decoded from JSON.
func (c *ClaimsSet) Claim(name string) (any, bool) {
	v, ok := c.claims[name]
	return v, ok
}

// StringClaim returns the named claim when it is a JSON string.
func (c *ClaimsSet) StringClaim(name string) (string, bool) {
	s, ok := c.claims[name].(string)
	return s, ok
}

// AuthorizedParty returns azp, falling back to appid.
func (c *ClaimsSet) AuthorizedParty() string {
	if s, ok := c.StringClaim(ClaimAuthorizedParty); ok && s != "" {
		return s
	}
	s, _ := c.StringClaim(ClaimApplicationID)
	return s
}

// Claims returns a shallow copy of every claim.
func (c *ClaimsSet) Claims() map[string]any {
	out := make(map[string]any, len(c.claims))
	for k, v := range c.claims {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// ClaimsValidator
// ---------------------------------------------------------------------------

// ClaimsValidator enforces issuer, audience, expiry, not-before and caller
// binding on a signature-verified payload. It does no I/O.
type ClaimsValidator struct {
	issuer         string
	audiences      []string
	requiredCaller string
	clockSkew      time.Duration
	now            func() time.Time
}

// NewClaimsValidator builds a validator from cfg. now defaults to
// time.Now.
func NewClaimsValidator(cfg ValidationConfig, now func() time.Time) *ClaimsValidator {
	if now == nil {
		now = time.Now
	}
	return &ClaimsValidator{
		issuer:         cfg.Issuer,
		audiences:      cfg.audiences(),
		requiredCaller: cfg.RequiredCaller,
		clockSkew:      cfg.ClockSkew,
		now:            now,
	}
}

// Validate runs the checks in order and returns the first failure.
func (v *ClaimsValidator) Validate(claims jwt.MapClaims) error {
	now := v.now()

	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return newErrorf(KindIssuerMismatch, "auth: unexpected issuer %q", iss).
			WithDetail("iss", iss)
	}

	aud, err := claims.GetAudience()
	if err != nil || !containsAny(aud, v.audiences) {
		return newError(KindAudienceMismatch, "auth: token audience does not include this API").
			WithDetail("aud", []string(aud))
	}

	// exp is mandatory and gets no leeway.
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return newError(KindTokenExpired, "auth: token has no usable exp claim")
	}
	if !now.Before(exp.Time) {
		return newError(KindTokenExpired, "auth: token has expired").
			WithDetail("exp", exp.Time.UTC().Format(time.RFC3339))
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return newError(KindTokenNotYetValid, "auth: token nbf claim is malformed")
	}
	if nbf != nil && nbf.Time.After(now.Add(v.clockSkew)) {
		return newError(KindTokenNotYetValid, "auth: token is not valid yet").
			WithDetail("nbf", nbf.Time.UTC().Format(time.RFC3339))
	}

	if v.requiredCaller != "" {
		azp, _ := claims[ClaimAuthorizedParty].(string)
		appid, _ := claims[ClaimApplicationID].(string)
		if azp != v.requiredCaller && appid != v.requiredCaller {
			return newError(KindCallerMismatch, "auth: token was issued to a different client").
				WithDetail("azp", azp).
				WithDetail("appid", appid)
		}
	}
	return nil
}

func containsAny(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}
