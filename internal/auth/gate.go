package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	apperrors "github.com/charlesng35/rosterd/pkg/errors"
	"github.com/charlesng35/rosterd/pkg/logger"
	"github.com/charlesng35/rosterd/pkg/metrics"
)

// Gate authorizes callers of protected operations.
type Gate struct {
	credentials *CredentialStore
	log         *zap.Logger
}

// NewGate constructs a Gate backed by the credential store.
func NewGate(credentials *CredentialStore) (*Gate, error) {
	if credentials == nil {
		return nil, errors.New("gate: credential store is required")
	}
	return &Gate{credentials: credentials, log: logger.WithModule("auth")}, nil
}

// Authorize returns the username carried by token. It fails with
// ErrUnauthorized when the token does not verify or its subject is no longer
// an active registered credential. Store failures surface as ErrStoreUnavailable.
func (g *Gate) Authorize(ctx context.Context, token string) (string, error) {
	username, err := g.credentials.VerifyToken(token)
	if err != nil {
		metrics.TokenChecks.WithLabelValues("invalid").Inc()
		return "", apperrors.ErrUnauthorized.WithInternal(err)
	}

	user, err := g.credentials.Lookup(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		metrics.TokenChecks.WithLabelValues("unknown_subject").Inc()
		g.log.Debug("token subject no longer registered", zap.String("username", username))
		return "", apperrors.ErrUnauthorized
	case err != nil:
		metrics.TokenChecks.WithLabelValues("error").Inc()
		return "", err
	case !user.IsActive:
		metrics.TokenChecks.WithLabelValues("inactive").Inc()
		return "", apperrors.ErrUnauthorized
	}

	metrics.TokenChecks.WithLabelValues("valid").Inc()
	return username, nil
}
