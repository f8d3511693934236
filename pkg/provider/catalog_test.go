package provider_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"git.sr.ht/~jakintosh/authclient/pkg/provider"
)

func writeApp(t *testing.T, dir string, name string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadCatalog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeApp(t, dir, "ledger.json", `{"display":"Ledger","audience":"ledger.test"}`)
	writeApp(t, dir, "broken.json", `{not json`)
	writeApp(t, dir, "noaud.json", `{"display":"No Audience"}`)
	writeApp(t, dir, "README.md", `ignored`)

	catalog, err := provider.LoadCatalog(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	// invalid definitions are skipped
	assert.Equal(t, []string{"ledger"}, catalog.Names())
	app, err := catalog.Get("ledger")
	require.NoError(t, err)
	assert.Equal(t, "Ledger", app.Display)
	assert.Equal(t, "ledger.test", app.Audience)

	_, err = catalog.Get("broken")
	assert.ErrorIs(t, err, provider.ErrApplicationNotFound)
}

func TestLoadCatalog_MissingDir(t *testing.T) {
	t.Parallel()
	_, err := provider.LoadCatalog(filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestCatalog_ReloadsOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeApp(t, dir, "ledger.json", `{"display":"Ledger","audience":"ledger.test"}`)

	catalog, err := provider.LoadCatalog(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = catalog.Close() })

	writeApp(t, dir, "payroll.json", `{"display":"Payroll","audience":"payroll.test"}`)

	select {
	case <-catalog.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("catalog did not reload")
	}
	_, err = catalog.Get("payroll")
	assert.NoError(t, err)
}

func TestStaticCatalog(t *testing.T) {
	t.Parallel()
	catalog := provider.NewStaticCatalog(nil)
	_, err := catalog.Get("x")
	assert.ErrorIs(t, err, provider.ErrApplicationNotFound)

	catalog.Put("x", &provider.Application{Audience: "x.test"})
	app, err := catalog.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "x.test", app.Audience)
	assert.NoError(t, catalog.Close())
}
