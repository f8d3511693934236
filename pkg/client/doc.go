// Package client keeps an application signed in to an identity provider.
//
// A [Client] holds the current access and refresh token pair, persists it
// to a [store.Store], and refreshes it in the background before it expires.
// When there is no usable session it sends the user-agent to the provider's
// login page through a [navigate.Navigator].
//
// # Quick Start
//
//	c, err := client.New(ctx, client.Config{
//	    AuthURL:  "https://auth.example.com",
//	    APIURL:   "https://api.example.com",
//	    Database: "prod",
//	},
//	    client.WithStore(store.NewFile(path)),
//	    client.WithNavigator(navigate.NewBrowser(callbackURL)),
//	)
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
// Construction restores a persisted session first, then looks for `token`
// and `refresh_token` query parameters on the navigator's location. If
// neither yields a valid token the client redirects to the login page,
// unless [Config.DisableAutoLogin] is set.
//
// # Calling APIs
//
// Decorate individual requests, wrap a transport, or use the API client
// rooted at [Config.APIURL]:
//
//	req.Header = ...
//	if err := c.Decorate(req); err != nil {
//	    // not signed in
//	}
//
//	httpClient := &http.Client{Transport: &client.Transport{Decorator: c}}
//
//	var me User
//	err := c.API().Get(ctx, "users/me", &me)
//
// # Refresh
//
// Tokens are refreshed [Config.RefreshMargin] before they expire. Tokens
// that arrive already inside the margin are refreshed immediately. A failed
// refresh clears the session; the next [Client.Login] starts over.
//
// # Process-wide client
//
// [Create] and [Get] manage one client per process through the default
// [Holder]. Tests and libraries should hold their own [Holder] instead.
package client
