// Package services holds the outbound clients of the sync pipeline.
//
// # Provider
//
// [Provider] abstracts the music service. [SpotifyService] implements it over the Spotify Web API
// using [oauth2] static token sources, so a single service value serves every signed-in user.
// Outgoing calls share a [rate.Limiter]; playlist listings are followed page by page via [AllPlaylists].
//
// # Image generation
//
// [ImageGenerator] produces cover art from a prompt. [OpenAIGenerator] calls the OpenAI images endpoint
// and [CoverPrompt] builds the playlist cover prompt.
//
// # Error Handling
//
// Non-2xx responses and transport failures are returned as [shared.ProviderError], which wraps:
//   - [shared.ErrAPIRequest] : always
//   - [shared.ErrTokenExpired] : on 401
//
// A missing token yields [shared.ErrNotAuthenticated] before any request is made.
package services
