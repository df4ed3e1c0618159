package server

import (
	"net/http"
	"strings"
)

// NewRouter wires every HTTP route of the relay.
// Media files are only served locally when mediaURL is a path, not an absolute URL.
func NewRouter(chatServer *ChatServer, authServer *AuthServer, mediaURL, mediaRoot string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", chatServer)
	mux.HandleFunc("POST /auth/register", authServer.Register)
	mux.HandleFunc("POST /auth/login", authServer.Login)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if strings.HasPrefix(mediaURL, "/") && strings.HasSuffix(mediaURL, "/") && mediaRoot != "" {
		mux.Handle("GET "+mediaURL, http.StripPrefix(mediaURL, http.FileServer(http.Dir(mediaRoot))))
	}
	return mux
}
