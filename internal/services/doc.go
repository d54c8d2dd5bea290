// Package services defines the [RemoteLibrary] contract consumed by the playlist pipeline and implements it for the Spotify Web API.
//
// # RemoteLibrary
//
// The core packages only depend on [RemoteLibrary]: fetching playlists, owner profiles, paginated track pages,
// playback state and devices, and issuing mutations (reorder, add/remove tracks, create/delete playlist, transport).
// Track pages are returned as [Page] values whose Next handle is passed back to [RemoteLibrary.FetchNextPage].
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
// Refreshed tokens are reported through the callback set with [SpotifyService.SetTokenRefreshCallback] so the CLI can persist them.
//
// Mutations and transport commands go through [github.com/zmb3/spotify/v2]. Reads that must keep the raw record shape
// (playlist collection, track pages, playback, devices) use plain authenticated requests decoded into models.Raw* records,
// so snapshots persist exactly what the service returned.
//
// Every call waits on a [rate.Limiter] first.
//
// # Error Handling
//
// Every failure reaching the service is returned as a *[shared.RemoteUnavailableError], matching [shared.ErrRemoteUnavailable]:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
//   - [shared.ErrPlaylistNotFound] : the service answered 404 for a playlist
//   - [shared.ErrLocalTrack] : a local track was passed to a playlist mutation
package services
