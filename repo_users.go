package signon

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the persistence surface for local accounts. Lookups by
// provider identity use the composite (provider, external_id) anchor.
type Users interface {
	repository.Repository[*User]

	GetByProviderID(ctx context.Context, provider, externalID string) (*User, error)
	GetByProviderIDTx(ctx context.Context, tx bun.IDB, provider, externalID string) (*User, error)

	GetOrCreateByProviderID(ctx context.Context, record *User) (*User, error)
	GetOrCreateByProviderIDTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByProviderID(ctx context.Context, provider, externalID string) (*User, error) {
	return a.GetByProviderIDTx(ctx, a.db, provider, externalID)
}

func (a *users) GetByProviderIDTx(ctx context.Context, tx bun.IDB, provider, externalID string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", provider).
		Where("?TableAlias.external_id = ?", externalID).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Where("?TableAlias.deleted_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"username": username,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetOrCreateByProviderID(ctx context.Context, record *User) (*User, error) {
	return a.GetOrCreateByProviderIDTx(ctx, a.db, record)
}

// GetOrCreateByProviderIDTx inserts the record unless an account already
// holds its identity anchor. Concurrent callers race on the composite
// unique index; the loser re-fetches the winner's row so both observe
// the same account. A unique violation on username instead surfaces as
// ErrUsernameTaken.
func (a *users) GetOrCreateByProviderIDTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	existing, err := a.GetByProviderIDTx(ctx, tx, record.Provider, record.ExternalID)
	if err == nil {
		return existing, nil
	}

	if !IsIdentityNotFound(err) {
		return nil, err
	}

	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err == nil {
		return created, nil
	}

	if isUniqueViolation(err) {
		if violationOnColumn(err, "username") {
			return nil, ErrUsernameTaken
		}
		return a.GetByProviderIDTx(ctx, tx, record.Provider, record.ExternalID)
	}

	return nil, err
}

// IsIdentityNotFound reports whether err carries the identity-not-found
// text code.
func IsIdentityNotFound(err error) bool {
	return hasTextCode(err, TextCodeIdentityNotFound)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

// isUniqueViolation matches driver error strings for unique index
// violations across sqlite and postgres.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

func violationOnColumn(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "users."+column) ||
		strings.Contains(msg, "users_"+column)
}
