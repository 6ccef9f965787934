package server

import (
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
)

// Permissions granted to the seeded administrator.
var seedPermissions = []string{
	"users:read",
	"users:write",
	"settings:write",
}

// InitialiseSystem creates the seed administrator when it does not exist yet.
// An empty seed email skips seeding.
func (s *Server) InitialiseSystem() error {
	email, password := s.config.GetSeedUser()
	if email == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(email); err == nil {
		s.logger.Info().Str("email", email).Msg("Seed user already exists")
		return nil
	}

	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[Server.InitialiseSystem] users.HashPassword")
	}
	now := s.nowFunc()
	account := &users.Account{
		User: users.User{
			Email:       normaliseEmail(email),
			FirstName:   "Sakai",
			LastName:    "Admin",
			Roles:       []string{users.RoleAdmin, users.RoleUser},
			Permissions: seedPermissions,
			IsActive:    true,
			IsVerified:  true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	}
	if err := s.users.Upsert(account); err != nil {
		return errors.Wrap(err, "[Server.InitialiseSystem] users.Upsert")
	}

	if s.env == "DEV" {
		s.logger.Info().Msg("👤 Seed Admin Credentials:")
		s.logger.Info().Msgf("   Email:       %s", email)
		s.logger.Info().Msgf("   Password:    %s", password)
	}
	return nil
}
