package publish

import (
	"context"
	"os"
	"strings"

	errs "github.com/matzehuels/mockup/pkg/errors"
)

// TokenSource supplies the bearer token for the delivery endpoint. It is
// consulted on every publish so that rotated secrets are picked up.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a token given directly, typically from a flag.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token(context.Context) (string, error) {
	t := strings.TrimSpace(string(s))
	if t == "" {
		return "", errs.New(errs.ErrCodeConfig, "publish token is empty")
	}
	return t, nil
}

// EnvToken reads the token from the named environment variable.
type EnvToken string

// Token implements TokenSource.
func (e EnvToken) Token(context.Context) (string, error) {
	t := strings.TrimSpace(os.Getenv(string(e)))
	if t == "" {
		return "", errs.New(errs.ErrCodeConfig, "environment variable %s is not set", string(e))
	}
	return t, nil
}

// FileToken reads the token from a file, such as a mounted secret.
// Surrounding whitespace is ignored.
type FileToken string

// Token implements TokenSource.
func (f FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeConfig, err, "read token file")
	}
	t := strings.TrimSpace(string(data))
	if t == "" {
		return "", errs.New(errs.ErrCodeConfig, "token file %s is empty", string(f))
	}
	return t, nil
}

// CheckToken resolves ts once so a misconfigured secret fails at startup
// rather than on the first delivery.
func CheckToken(ctx context.Context, ts TokenSource) error {
	if ts == nil {
		return errs.New(errs.ErrCodeConfig, "no publish token configured")
	}
	_, err := ts.Token(ctx)
	return err
}
