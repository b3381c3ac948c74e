package signon

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the local account anchored to one external identity. At most
// one row exists per (provider, external_id); username is unique across
// all rows.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Provider      string     `bun:"provider,notnull,unique:users_provider_external_id" json:"provider,omitempty"`
	ExternalID    string     `bun:"external_id,notnull,unique:users_provider_external_id" json:"external_id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Bio           *string    `bun:"bio" json:"bio"`
	Image         *string    `bun:"image" json:"image"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Profile is the public shape returned to registration and profile
// consumers.
type Profile struct {
	Email    string  `json:"email"`
	Username string  `json:"username"`
	Bio      *string `json:"bio"`
	Image    *string `json:"image"`
}

// PublicProfile projects the user into its public shape.
func (u *User) PublicProfile() Profile {
	if u == nil {
		return Profile{}
	}
	return Profile{
		Email:    u.Email,
		Username: u.Username,
		Bio:      u.Bio,
		Image:    u.Image,
	}
}

// ExternalIdentity returns the identity triple this account is anchored to.
func (u *User) ExternalIdentity() ExternalIdentity {
	if u == nil {
		return ExternalIdentity{}
	}
	return ExternalIdentity{
		Provider:   u.Provider,
		ExternalID: u.ExternalID,
		Email:      u.Email,
	}
}

var _ Identity = (*userIdentity)(nil)

type userIdentity struct {
	user *User
}

func (i userIdentity) ID() string       { return i.user.ID.String() }
func (i userIdentity) Username() string { return i.user.Username }
func (i userIdentity) Email() string    { return i.user.Email }

// NewIdentityFromUser adapts a User record into an Identity.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return userIdentity{user: user}
}
