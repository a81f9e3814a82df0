package auth

import "context"

// Repository is the narrow persistence surface the auth core needs from the
// external account store. It is injected at construction time so tests can
// substitute the in-memory implementation.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	Save(ctx context.Context, account *Account) error
}
