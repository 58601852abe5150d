package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Service implements the account operations behind the auth and users
// endpoints. Authentication and authorization decisions go through the
// CredentialManager, TokenCodec and Filter it is built with.
type Service struct {
	accounts AccountRepository
	creds    *CredentialManager
	tokens   *TokenCodec
	filter   Filter

	// decoy is verified against when the username is unknown, so both
	// login failure paths cost one verification. Guarded by decoyMu.
	decoyMu sync.Mutex
	decoy   string
}

const decoyPassword = "decoy-password-never-matches"

// NewService creates a Service.
func NewService(accounts AccountRepository, creds *CredentialManager, tokens *TokenCodec) *Service {
	s := &Service{
		accounts: accounts,
		creds:    creds,
		tokens:   tokens,
		filter:   NewFilter(),
	}
	s.decoyHash(context.Background())
	return s
}

// Signup creates an account with a hashed password.
// A taken username returns ErrUsernameExists.
func (s *Service) Signup(ctx context.Context, username, password string) (*Account, error) {
	if !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}

	hash, err := s.creds.Hash(ctx, password)
	if err != nil {
		return nil, err
	}

	account := &Account{Username: username, PasswordHash: hash}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Login verifies credentials and issues a session token.
// An unknown username and a wrong password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Account, string, error) {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, "", err
		}
		s.creds.Verify(ctx, password, s.decoyHash(ctx))
		return nil, "", ErrInvalidCredentials
	}

	if !s.creds.Verify(ctx, password, account.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(IdentityOf(account))
	if err != nil {
		return nil, "", fmt.Errorf("issuing session token: %w", err)
	}
	return account, token, nil
}

// CurrentAccount returns the caller's own account.
func (s *Service) CurrentAccount(ctx context.Context) (*Account, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	return s.accounts.GetByID(ctx, id.AccountID)
}

// ListAccounts returns every account. Any authenticated caller may list.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	if _, err := s.filter.Identify(ctx); err != nil {
		return nil, err
	}
	return s.accounts.List(ctx)
}

// UpdateAccount changes the caller's own username and/or password. The
// target is always the caller; an empty field is left unchanged. A new
// password is hashed before it is stored.
func (s *Service) UpdateAccount(ctx context.Context, username, password string) (*Account, error) {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return nil, err
	}
	if username == "" && password == "" {
		return nil, ErrNoChanges
	}
	if username != "" && !IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}

	account, err := s.accounts.GetByID(ctx, s.filter.AccountUpdateTarget(id))
	if err != nil {
		return nil, err
	}

	if username != "" {
		account.Username = username
	}
	if password != "" {
		hash, err := s.creds.Hash(ctx, password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes another account. Deleting one's own account
// returns ErrForbidden; an unknown target returns ErrAccountNotFound.
func (s *Service) DeleteAccount(ctx context.Context, targetID string) error {
	id, err := s.filter.Identify(ctx)
	if err != nil {
		return err
	}
	if err := s.filter.AuthorizeAccountDelete(id, targetID); err != nil {
		return err
	}
	return s.accounts.Delete(ctx, targetID)
}

// SetPassword replaces the password of the named account. It is an
// operator action with no session identity, used by taskledgerctl.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	hash, err := s.creds.Hash(ctx, password)
	if err != nil {
		return err
	}
	account.PasswordHash = hash
	return s.accounts.Update(ctx, account)
}

// decoyHash returns the decoy, computing it if an earlier attempt failed.
// Only a successful hash is kept.
func (s *Service) decoyHash(ctx context.Context) string {
	s.decoyMu.Lock()
	defer s.decoyMu.Unlock()

	if s.decoy == "" {
		if hash, err := s.creds.Hash(ctx, decoyPassword); err == nil {
			s.decoy = hash
		}
	}
	return s.decoy
}
