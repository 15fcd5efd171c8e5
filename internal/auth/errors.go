package auth

import "errors"

// ErrTokenInvalid indicates a JWT failed signature, expiry, or claim validation.
var ErrTokenInvalid = errors.New("auth: invalid token")
