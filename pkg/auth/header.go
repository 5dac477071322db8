package auth

import "strings"

// HeaderAuthorization is the header (and gRPC metadata key) that carries
// the bearer credential. gRPC metadata keys are lowercase.
const HeaderAuthorization = "authorization"

const bearerScheme = "bearer"

// ExtractBearerToken returns the token from an Authorization header value
// of the form "Bearer <token>". The scheme is matched case-insensitively
// and surrounding whitespace is ignored. It returns "" when the value has
// a different scheme or no token.
func ExtractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}
