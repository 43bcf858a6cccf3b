package auth

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// AccountContext contains authenticated account information
type AccountContext struct {
	AccountID   string
	Username    string
	DisplayName string
	Role        string
	TokenID     string
}

// contextKey is the key for storing account info in context
type contextKey string

const accountContextKey contextKey = "account"

// GetAccountFromContext extracts the authenticated account from the context
func GetAccountFromContext(ctx context.Context) (*AccountContext, error) {
	account, ok := ctx.Value(accountContextKey).(*AccountContext)
	if !ok || account == nil {
		return nil, ErrUnauthorized
	}
	return account, nil
}

// SetAccountInContext stores the authenticated account in the context
func SetAccountInContext(ctx context.Context, account *AccountContext) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// RequireAdmin checks if the account has the admin role
func RequireAdmin(ctx context.Context) error {
	account, err := GetAccountFromContext(ctx)
	if err != nil {
		return err
	}

	if account.Role != "admin" {
		return ErrForbidden
	}

	return nil
}

// CanManageAccount checks if the account can manage the given target account.
// Accounts can manage themselves; admins can manage anyone.
func CanManageAccount(ctx context.Context, targetAccountID string) error {
	account, err := GetAccountFromContext(ctx)
	if err != nil {
		return err
	}

	if account.Role == "admin" {
		return nil
	}

	if account.AccountID != targetAccountID {
		return ErrForbidden
	}

	return nil
}
