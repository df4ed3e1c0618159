//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	userIDPrefix    = "user:id:"
	userEmailPrefix = "user:email:"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
	Resolve(id string) (chat.Identity, bool, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

// User is the account record behind an identity.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

type diskUser struct {
	ID           string   `cbor:"id"`
	Email        string   `cbor:"email"`
	PasswordHash string   `cbor:"password_hash"`
	Roles        []string `cbor:"roles"`
	CreatedAt    int64    `cbor:"created_at"`
}

// CreateUser persists a new account and returns its generated ID.
// The email index and the record are written in the same transaction.
func (u *UserRepository) CreateUser(email, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	data, err := marshal(diskUser{
		ID:           newID,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte(userEmailPrefix + email)
		if _, err := txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey, []byte(newID)); err != nil {
			return err
		}
		return txn.Set([]byte(userIDPrefix+newID), data)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

// GetUserByEmail follows the email index to the account record.
func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailPrefix + email))
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		user, err = getUser(txn, string(id))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrInvalidCredentials
	}
	return user, err
}

// Resolve looks up an identity by its opaque ID.
// A missing user is reported with found=false and no error.
func (u *UserRepository) Resolve(id string) (chat.Identity, bool, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Identity{}, false, nil
	}
	if err != nil {
		return chat.Identity{}, false, err
	}
	return chat.Identity{ID: chat.UserID(user.ID), Email: user.Email}, true, nil
}

func getUser(txn *badger.Txn, id string) (User, error) {
	item, err := txn.Get([]byte(userIDPrefix + id))
	if err != nil {
		return User{}, err
	}
	var du diskUser
	err = item.Value(func(val []byte) error {
		return unmarshal(val, &du)
	})
	if err != nil {
		return User{}, err
	}
	return toUser(du), nil
}

func userExists(txn *badger.Txn, id chat.UserID) (bool, error) {
	_, err := txn.Get([]byte(userIDPrefix + string(id)))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func toUser(du diskUser) User {
	return User{
		ID:           du.ID,
		Email:        du.Email,
		PasswordHash: du.PasswordHash,
		Roles:        du.Roles,
		CreatedAt:    time.Unix(0, du.CreatedAt).UTC(),
	}
}
