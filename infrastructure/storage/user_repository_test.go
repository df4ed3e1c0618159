package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_Create_And_Resolve(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	// Given a registered user
	id, err := repository.CreateUser("alice@example.com", "hash")
	req.NoError(err)
	req.NotEmpty(id)

	// When resolving its ID
	identity, found, err := repository.Resolve(id)

	// Then the identity is returned
	req.NoError(err)
	req.True(found)
	req.Equal(chat.Identity{ID: chat.UserID(id), Email: "alice@example.com"}, identity)
}

func TestUserRepository_Resolve_Unknown_Is_Not_An_Error(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	identity, found, err := repository.Resolve("9999")

	req.NoError(err)
	req.False(found)
	req.Empty(identity)
}

func TestUserRepository_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("bob@example.com", "hash")
	req.NoError(err)
	_, err = repository.CreateUser("bob@example.com", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_GetUserByEmail(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))
	id, err := repository.CreateUser("clara@example.com", "$argon2id$hash")
	req.NoError(err)

	user, err := repository.GetUserByEmail("clara@example.com")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("$argon2id$hash", user.PasswordHash)
	req.Equal([]string{"user"}, user.Roles)

	_, err = repository.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
