// Package server provides HTTP routing, middleware, the JSON API and OAuth handling for the cover service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers [http.ServeMux] method patterns, so wildcards like
// "/api/playlists/{id}/history" and automatic 405 responses come from the standard mux.
//
// # API
//
// [API] serves every route under /api/. [RequireIdentity] resolves the bearer token to a provider
// profile once per request and stores it in the request context; handlers read it back with
// [IdentityFrom] instead of reaching for a session.
//
// Errors are written as {"error": "..."} with the status chosen by [StatusFor].
//
// # OAuth Handler
//
// [OAuthHandler] implements the OAuth2 authorization code flow. [NewOAuthHandler] builds the
// single-use variant the CLI runs on localhost for one callback; [NewLoginHandler] builds the
// variant mounted by the long-running server, which answers each callback with the token as JSON.
//
// # Lifecycle
//
// [Server.Run] serves until its context ends, then shuts the HTTP server down and drains the
// background job queue.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
