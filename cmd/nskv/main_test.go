package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbitdb/go-kvstore/kvstore"
)

type cliRunner struct {
	t    *testing.T
	base []string
}

func newRunner(t *testing.T, flags ...string) *cliRunner {
	return &cliRunner{t: t, base: append([]string{"nskv"}, flags...)}
}

func (r *cliRunner) run(args ...string) (string, error) {
	r.t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append(append([]string{}, r.base...), args...))
	return out.String(), err
}

func (r *cliRunner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run(args...)
	require.NoError(r.t, err)
	return out
}

func TestCLI_Scenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "leveldb")
	r := newRunner(t, "--datadir", dir, "--namespace", "modA")

	r.mustRun("set", "b.txt", `{"n":2}`)
	r.mustRun("set", "a.txt", `{"n": 1}`)

	assert.Equal(t, "modA:a.txt\nmodA:b.txt\n", r.mustRun("list"))
	assert.Equal(t, "a.txt\nb.txt\n", r.mustRun("list", "--logical"))
	assert.Equal(t, "{\"n\":1}\n", r.mustRun("get", "a.txt"))

	r.mustRun("clear")
	assert.Equal(t, "", r.mustRun("list"))

	_, err := r.run("get", "a.txt")
	assert.Error(t, err)
}

func TestCLI_NamespacesAreIsolated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pebble")
	x := newRunner(t, "--backend", "pebble", "--datadir", dir, "--namespace", "X")
	y := newRunner(t, "--backend", "pebble", "--datadir", dir, "--namespace", "Y")

	x.mustRun("set", "k", "1")
	y.mustRun("set", "k", "2")

	assert.Equal(t, "1\n", x.mustRun("get", "k"))
	assert.Equal(t, "2\n", y.mustRun("get", "k"))

	x.mustRun("delete", "k")
	x.mustRun("delete", "k")
	assert.Equal(t, "2\n", y.mustRun("get", "k"))
}

func TestCLI_Errors(t *testing.T) {
	r := newRunner(t, "--backend", "memory")

	_, err := r.run("set", "k", "{not json")
	assert.Error(t, err)

	_, err = r.run("get")
	assert.Error(t, err)

	_, err = newRunner(t, "--backend", "rocksdb").run("list")
	assert.Error(t, err)

	_, err = newRunner(t, "--datadir", t.TempDir(), "--namespace", "a:b", "--strict").run("list")
	assert.ErrorIs(t, err, kvstore.ErrInvalidNamespace)

	_, err = newRunner(t, "--verbosity", "loud").run("dumpconfig")
	assert.Error(t, err)
}

func TestCLI_RejectsVolatileBackends(t *testing.T) {
	for _, backend := range []string{"memory", "datastore"} {
		t.Run(backend, func(t *testing.T) {
			_, err := newRunner(t, "--backend", backend).run("set", "k", "1")
			assert.ErrorIs(t, err, errVolatileBackend)

			// dumpconfig does not touch storage.
			out, err := newRunner(t, "--backend", backend).run("dumpconfig")
			require.NoError(t, err)
			assert.Contains(t, out, backend)
		})
	}
}

func TestCLI_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "nskv.toml")
	config := `Name = "files"
Namespace = "fromfile"

[Storage]
Backend = "leveldb"
Path = "` + filepath.ToSlash(filepath.Join(dir, "db")) + `"
CacheSize = 8
`
	require.NoError(t, os.WriteFile(file, []byte(config), 0o600))

	r := newRunner(t, "--config", file)
	r.mustRun("set", "a", `"x"`)
	assert.Equal(t, "fromfile:a\n", r.mustRun("list"))

	// Flags override the file.
	o := newRunner(t, "--config", file, "--namespace", "override")
	assert.Equal(t, "", o.mustRun("list"))

	dump := r.mustRun("dumpconfig")
	assert.True(t, strings.Contains(dump, `Namespace = "fromfile"`), dump)
	assert.True(t, strings.Contains(dump, "CacheSize = 8"), dump)
}

func TestCLI_ConfigFileUnknownField(t *testing.T) {
	file := filepath.Join(t.TempDir(), "nskv.toml")
	require.NoError(t, os.WriteFile(file, []byte("Bogus = 1\n"), 0o600))

	var cfg nskvConfig
	err := loadConfig(file, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bogus")
}
