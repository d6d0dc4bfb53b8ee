// Package secrets resolves ${secret:name} references in rule store
// credentials.
//
// A reference may stand for a whole value or a part of it:
//
//	rules:
//	  redis:
//	    url: redis://:${secret:redis-password}@redis:6379/0
//	  git:
//	    auth:
//	      type: token
//	      token: ${secret:git-token}
//
// Names are looked up in the configured secrets directory (one file per
// secret, as mounted by Kubernetes) and then in the environment, where
// "git-token" becomes SENTINEL_SECRET_GIT_TOKEN.
package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by providers that do not hold a secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from a backend.
type Provider interface {
	// Lookup returns the value of the named secret. It returns an error
	// wrapping ErrNotFound when the backend does not hold the secret.
	Lookup(ctx context.Context, name string) (string, error)

	// Name returns the provider name (env, file).
	Name() string
}
