// Package server runs the local HTTP endpoint that completes the Spotify OAuth flow.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] with [http.ServeMux] and a [Middleware] stack.
// [RequestLogger] logs every request through charmbracelet/log.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, hands the authorization code to an [Authenticator]
// and sends the resulting token through a channel. Only the first callback is processed.
//
// [CallbackServer] starts a temporary server on the configured host and port, opens the authorization URL
// and shuts down once the callback has been handled or the timeout expires.
package server
