package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/sentinel/pkg/config"
)

// refRegex matches ${secret:name} references.
var refRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks secrets up in its providers in order. The first provider
// holding a secret wins.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver creates a resolver over providers.
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{providers: providers, logger: logger.With("component", "secrets")}
}

// FromConfig builds the resolver described by the secrets configuration:
// the secrets directory when set, then the environment.
func FromConfig(cfg *config.SecretsConfig, logger *slog.Logger) (*Resolver, error) {
	var providers []Provider
	if cfg.Dir != "" {
		fp, err := NewFileProvider(cfg.Dir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	providers = append(providers, NewEnvProvider(cfg.EnvPrefix))
	return NewResolver(logger, providers...), nil
}

// Get returns the named secret from the first provider holding it.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	for _, p := range r.providers {
		value, err := p.Lookup(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%s provider: %w", p.Name(), err)
		}
		r.logger.Debug("secret resolved", "name", redactName(name), "provider", p.Name())
		return value, nil
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Resolve replaces every reference in input with its secret. Unresolvable
// references are reported together and left in place.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	var problems []string
	output := refRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := refRegex.FindStringSubmatch(match)[1]
		value, err := r.Get(ctx, name)
		if err != nil {
			problems = append(problems, err.Error())
			return match
		}
		return value
	})
	if len(problems) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(problems, "; "))
	}
	return output, nil
}

// ResolveRuleCredentials resolves references in the credential fields of a
// rules configuration in place: the Redis URL, the git token and the SSH
// key passphrase.
func (r *Resolver) ResolveRuleCredentials(ctx context.Context, rc *config.RulesConfig) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"rules.redis.url", &rc.Redis.URL},
		{"rules.git.auth.token", &rc.Git.Auth.Token},
		{"rules.git.auth.ssh_key_passphrase", &rc.Git.Auth.SSHKeyPassphrase},
	}

	var errs []error
	for _, f := range fields {
		if !strings.Contains(*f.value, config.SecretRefPrefix) {
			continue
		}
		resolved, err := r.Resolve(ctx, *f.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
			continue
		}
		*f.value = resolved
	}
	return errors.Join(errs...)
}

// redactName keeps the first and last two characters of a secret name for
// logging.
func redactName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
