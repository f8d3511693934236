package navigate_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/authclient/pkg/navigate"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()
	u, err := navigate.BuildURL(
		"https://idp.test/",
		navigate.Login,
		"https://app.test/page?x=1",
		"prod",
		"ledger",
	)
	require.NoError(t, err)

	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "idp.test", u.Host)
	assert.Equal(t, "/login", u.Path)
	assert.Equal(t, "https://app.test/page?x=1", u.Query().Get("next"))
	assert.Equal(t, "prod", u.Query().Get("database"))
	assert.Equal(t, "ledger", u.Query().Get("appName"))
}

func TestBuildURL_Logout(t *testing.T) {
	t.Parallel()
	u, err := navigate.BuildURL("https://idp.test/base", navigate.Logout, "", "", "default")
	require.NoError(t, err)
	assert.Equal(t, "/base/logout", u.Path)

	// empty values are still sent
	q := u.Query()
	assert.True(t, q.Has("next"))
	assert.True(t, q.Has("database"))
}

func TestBuildURL_Rejects(t *testing.T) {
	t.Parallel()
	_, err := navigate.BuildURL("https://idp.test", navigate.Action("delete"), "", "", "")
	assert.Error(t, err)

	_, err = navigate.BuildURL("idp.test", navigate.Login, "", "", "")
	assert.Error(t, err)

	_, err = navigate.BuildURL("://bad", navigate.Login, "", "", "")
	assert.Error(t, err)
}

func TestStripTokenParams(t *testing.T) {
	t.Parallel()
	loc, err := url.Parse("http://127.0.0.1:8080/callback?token=a&refresh_token=r&state=keep#frag")
	require.NoError(t, err)

	access, refresh := navigate.TokenParams(loc)
	assert.Equal(t, "a", access)
	assert.Equal(t, "r", refresh)

	stripped := navigate.StripTokenParams(loc)
	assert.Equal(t, "state=keep", stripped.RawQuery)
	assert.Equal(t, "frag", stripped.Fragment)

	// input is untouched
	assert.Equal(t, "a", loc.Query().Get("token"))

	access, refresh = navigate.TokenParams(nil)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	assert.Nil(t, navigate.StripTokenParams(nil))
}

func TestRecorder(t *testing.T) {
	t.Parallel()
	r, err := navigate.NewRecorder("https://app.test/?token=a")
	require.NoError(t, err)
	assert.Nil(t, r.Last())

	target, _ := url.Parse("https://idp.test/login")
	require.NoError(t, r.Redirect(context.Background(), target))
	assert.Equal(t, target, r.Last())
	assert.Len(t, r.Redirects(), 1)

	r.Replace(navigate.StripTokenParams(r.Location()))
	assert.Equal(t, "", r.Location().RawQuery)

	// injected failure
	r.Err = errors.New("blocked")
	assert.Error(t, r.Redirect(context.Background(), target))
	assert.Len(t, r.Redirects(), 1)
}

func TestBrowser(t *testing.T) {
	t.Parallel()
	loc, _ := url.Parse("http://127.0.0.1:9999/callback")

	var opened []string
	b := navigate.NewBrowser(loc).WithOpener(func(u string) error {
		opened = append(opened, u)
		return nil
	})

	target, _ := url.Parse("https://idp.test/login?next=x")
	require.NoError(t, b.Redirect(context.Background(), target))
	assert.Equal(t, []string{"https://idp.test/login?next=x"}, opened)
	assert.Equal(t, loc.String(), b.Location().String())

	assert.Error(t, b.Redirect(context.Background(), nil))
}
