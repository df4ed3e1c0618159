package auth

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"fmt"
	"net/http"
	"strings"
)

// Admit extracts the identity of an incoming connection.
// The token is read from the "Authorization: Bearer" header, or from the
// "token" query parameter since browsers cannot set headers on WebSocket upgrades.
func Admit(r *http.Request, tokens *Tokens) (chat.Identity, error) {
	tokenStr := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tokenStr == "" {
		tokenStr = r.URL.Query().Get("token")
	}
	if tokenStr == "" {
		return chat.Identity{}, errors.ErrMissingToken
	}
	claims, err := tokens.ValidateToken(tokenStr)
	if err != nil {
		return chat.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	return chat.Identity{ID: chat.UserID(claims.UserID)}, nil
}
