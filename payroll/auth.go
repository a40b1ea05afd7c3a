package payroll

import (
	"context"

	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// AUTHENTICATION - Credential lookup for the two client roles
// =============================================================================

// Secrets are stored as bcrypt hashes. The original back office compared
// plaintext; that is not carried forward.

// HashSecret hashes a credential secret for storage.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Auth performs exact-match credential authentication against the store.
// There is no lockout or rate-limit policy here; the caller owns that.
type Auth struct {
	Store Store
}

// NewAuth creates an authenticator over the given store handle.
func NewAuth(store Store) *Auth {
	return &Auth{Store: store}
}

// AuthenticateAccountant resolves an accountant by login and secret.
func (a *Auth) AuthenticateAccountant(ctx context.Context, login, secret string) (*Accountant, error) {
	acc, err := a.Store.GetAccountant(ctx, login)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAuthenticationFailed
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.SecretHash), []byte(secret)) != nil {
		return nil, ErrAuthenticationFailed
	}
	return acc, nil
}

// AuthenticateWorker resolves a worker by badge number and secret.
func (a *Auth) AuthenticateWorker(ctx context.Context, badge, secret string) (*Worker, error) {
	w, err := a.Store.GetWorkerByBadge(ctx, badge)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(w.SecretHash), []byte(secret)) != nil {
		return nil, ErrAuthenticationFailed
	}
	return w, nil
}
