package auth

// IdentityProvider is the pluggable identity hook selected by AUTH_MODE: it
// turns a bearer token into validated claims, or (passthrough mode) simply
// trusts whatever the client asserts. The Router and Transport Listener
// depend only on this interface, never on Validator or PassthroughValidator
// directly.
type IdentityProvider interface {
	ValidateToken(tokenString string) (*CustomClaims, error)
}

var (
	_ IdentityProvider = (*Validator)(nil)
	_ IdentityProvider = (*PassthroughValidator)(nil)
)

// PassthroughValidator is the AUTH_MODE=passthrough (default) identity
// provider: it never rejects a token, extracting whatever subject it can
// from an unverified JWT payload and falling back to an anonymous identity
// otherwise. This matches the spec's literal wire examples, where userId
// arrives client-side on join_stream/resume with no bearer token at all.
type PassthroughValidator struct{}

// ValidateToken implements IdentityProvider by delegating to the same
// best-effort JWT subject extraction MockValidator already performs,
// without verifying any signature.
func (p *PassthroughValidator) ValidateToken(tokenString string) (*CustomClaims, error) {
	return (&MockValidator{}).ValidateToken(tokenString)
}

// NewIdentityProvider selects the concrete IdentityProvider for mode
// ("jwt" or "passthrough"). validator is used for "jwt" mode and may be nil
// when mode is "passthrough".
func NewIdentityProvider(mode string, validator *Validator) IdentityProvider {
	if mode == "jwt" && validator != nil {
		return validator
	}
	return &PassthroughValidator{}
}
