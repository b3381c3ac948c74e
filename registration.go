package signon

import (
	"context"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// CompleteRegistrationMessage carries the registration form submission
// plus the pending token minted during the provider callback.
type CompleteRegistrationMessage struct {
	Token    string  `json:"token" doc:"Pending registration token"`
	Username string  `json:"username" example:"ada" doc:"Chosen username"`
	Bio      *string `json:"bio,omitempty" doc:"Optional profile bio"`
	Image    *string `json:"image,omitempty" doc:"Optional avatar URL"`
}

func (e CompleteRegistrationMessage) Type() string { return "auth.registration.complete" }

// Validate checks the form fields. Token integrity is checked
// separately by the handler.
func (e CompleteRegistrationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Username,
			validation.Required,
			validation.Length(3, 30),
			validation.Match(usernamePattern),
		),
	)
}

// CompleteRegistrationHandler turns a verified pending token plus a
// chosen username into a local account.
type CompleteRegistrationHandler struct {
	repo    RepositoryManager
	pending *PendingTokenService
	logger  Logger
}

// NewCompleteRegistrationHandler creates a handler with sane defaults.
func NewCompleteRegistrationHandler(repo RepositoryManager, pending *PendingTokenService) *CompleteRegistrationHandler {
	return &CompleteRegistrationHandler{
		repo:    repo,
		pending: pending,
		logger:  defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *CompleteRegistrationHandler) WithLogger(logger Logger) *CompleteRegistrationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CompleteRegistrationHandler) Execute(ctx context.Context, event CompleteRegistrationMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration completion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CompleteRegistrationHandler) execute(ctx context.Context, event CompleteRegistrationMessage) (*User, error) {
	// Token checks run before any field validation so expired flows fail
	// with the token error the client can act on.
	identity, err := h.pending.Verify(event.Token)
	if err != nil {
		return nil, err
	}

	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, ErrInvalidUsername.Category, ErrInvalidUsername.Message).
			WithTextCode(ErrInvalidUsername.TextCode).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"username": event.Username,
			})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &User{
			Provider:   identity.Provider,
			ExternalID: identity.ExternalID,
			Email:      identity.Email,
			Username:   strings.TrimSpace(event.Username),
			Bio:        event.Bio,
			Image:      event.Image,
		}

		// Double submits of the same token resolve to the account that
		// already holds the identity anchor.
		if user, err = h.repo.Users().GetOrCreateByProviderIDTx(ctx, tx, record); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "registration transaction failed")
	}

	h.logger.Info("registration completed for %s via %s", user.Username, user.Provider)

	return user, nil
}
