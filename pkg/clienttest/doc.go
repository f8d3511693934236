// Package clienttest helps applications that use the token client test
// their own code without a running identity provider.
//
// A [TestEnv] signs tokens with a shared key and can stand in for the
// provider's refresh endpoint:
//
//	func TestDashboard(t *testing.T) {
//	    env := clienttest.NewTestEnv("auth.example.test", "ledger")
//	    c := env.SignedIn(t, clienttest.User("alice"))
//
//	    api := myapp.New(c) // c is a client.TokenSource
//	    ...
//	}
//
// Requests for handlers that expect a bearer token can be built with
// [TestEnv.AuthenticatedRequest].
package clienttest
