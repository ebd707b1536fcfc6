package config

import "errors"

var ErrNoTokenVerifier = errors.New("either OIDC_JWKS_URL or JWT_DEV_SECRET must be set")
