package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.sr.ht/~jakintosh/authclient/pkg/provider"
)

func TestUserFlag(t *testing.T) {
	var users UserFlag
	require.NoError(t, users.Set("alice:secret"))
	require.NoError(t, users.Set("bob:pa:ss:prod"))
	assert.Equal(t, UserFlag{
		{Handle: "alice", Password: "secret"},
		{Handle: "bob", Password: "pa", Database: "ss:prod"},
	}, users)

	assert.Error(t, users.Set("nopassword"))
	assert.Error(t, users.Set(":pw"))
}

func TestSeedApplication(t *testing.T) {
	dir := t.TempDir()
	flags := Flags{AppName: "ledger", AppDisplay: "Ledger", AppAudience: "ledger.test"}
	require.NoError(t, seedApplication(dir, flags))

	data, err := os.ReadFile(filepath.Join(dir, "ledger.json"))
	require.NoError(t, err)
	var app provider.Application
	require.NoError(t, json.Unmarshal(data, &app))
	assert.Equal(t, "ledger.test", app.Audience)

	// existing definitions are left alone
	flags.AppAudience = "changed"
	require.NoError(t, seedApplication(dir, flags))
	data, err = os.ReadFile(filepath.Join(dir, "ledger.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &app))
	assert.Equal(t, "ledger.test", app.Audience)
}
