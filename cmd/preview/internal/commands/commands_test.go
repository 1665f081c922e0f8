package commands

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wolfeidau/gravitypreview/internal/assets"
	"github.com/wolfeidau/gravitypreview/internal/bundle"
	"github.com/wolfeidau/gravitypreview/internal/preview"
	"github.com/wolfeidau/gravitypreview/internal/server"
)

const homeBundle = `{
	"type": "ice",
	"modules": {
		"/.gitignore": {"fpath": "/.gitignore", "code": "node_modules"},
		"/package.json": {"fpath": "/package.json", "code": "{\"dependencies\":{\"moment\":\"^2.29.0\"}}"},
		"/src/utils.js": {"fpath": "/src/utils.js", "code": "export default 'hi';"},
		"/src/pages/Home/index.jsx": {"fpath": "/src/pages/Home/index.jsx", "code": "import s from '@/utils';\nexport default () => <p>{s}</p>;"}
	}
}`

func writeBundle(t *testing.T, doc string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
	return path
}

func TestNormalizeCmd_Run(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.json")

	cmd := &NormalizeCmd{
		In:      writeBundle(t, homeBundle),
		Out:     outPath,
		Refresh: "1",
		Pretty:  true,
		Check:   true,
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  ")

	out, err := bundle.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, preview.TargetKind, out.Kind)
	assert.False(t, out.Modules.Has("/.gitignore"))
	assert.True(t, out.Modules.Has("/src/pages/Home/index.js"))
	assert.Equal(t, "^2.29.0", gjson.Get(out.Modules.Get("/package.json").Code, "dependencies.moment").String())
}

func TestNormalizeCmd_invalidManifest(t *testing.T) {
	cmd := &NormalizeCmd{
		In:  writeBundle(t, `{"modules": {"/package.json": {"code": "{"}}}`),
		Out: filepath.Join(t.TempDir(), "out.json"),
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, preview.ErrInvalidManifest)
}

func TestNormalizeCmd_nullBundle(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.json")
	cmd := &NormalizeCmd{
		In:  writeBundle(t, "null"),
		Out: outPath,
	}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, "null", string(data))
}

func TestNormalizeCmd_missingInput(t *testing.T) {
	cmd := &NormalizeCmd{
		In:  filepath.Join(t.TempDir(), "missing.json"),
		Out: stdio,
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read bundle")
}

func TestCheckCmd_Run(t *testing.T) {
	cmd := &CheckCmd{
		In:      writeBundle(t, homeBundle),
		Entries: []string{"/src/app.js", "/src/html.js"},
	}

	require.NoError(t, cmd.Run(context.Background(), &Globals{}))
}

func TestCheckCmd_buildFailure(t *testing.T) {
	cmd := &CheckCmd{
		In:      writeBundle(t, `{"modules": {"/src/pages/Home/index.jsx": {"code": "import x from '@/missing';\nexport default x;"}}}`),
		Entries: []string{"/src/app.js"},
	}

	err := cmd.Run(context.Background(), &Globals{})
	require.ErrorIs(t, err, assets.ErrBuildFailed)
}

func TestCheckCmd_nullBundle(t *testing.T) {
	cmd := &CheckCmd{In: writeBundle(t, "null")}

	err := cmd.Run(context.Background(), &Globals{})
	require.Error(t, err)
}

func TestServeCmd_Validate(t *testing.T) {
	require.NoError(t, (&ServeCmd{CacheSize: 1, MaxBodyBytes: 1}).Validate())
	require.Error(t, (&ServeCmd{CacheSize: 0, MaxBodyBytes: 1}).Validate())
	require.Error(t, (&ServeCmd{CacheSize: 1, MaxBodyBytes: 0}).Validate())
}

func TestServeCmd_middleware(t *testing.T) {
	cmd := &ServeCmd{
		CORSOrigins:  []string{"http://localhost:3000"},
		CacheSize:    4,
		MaxBodyBytes: 1 << 20,
	}

	memo, err := preview.NewMemo(cmd.CacheSize)
	require.NoError(t, err)
	srv := server.NewServer(memo, assets.New(assets.DefaultConfig()))

	ts := httptest.NewServer(cmd.middleware(zerolog.Nop(), srv.Handler()))
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/normalize?refresh=2", strings.NewReader(homeBundle))
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Accept-Encoding", "gzip")

	// disable transparent decompression to observe the encoding
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	require.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	gz, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	out, err := bundle.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, preview.TargetKind, out.Kind)
}

func TestServeCmd_middlewareBodyLimit(t *testing.T) {
	cmd := &ServeCmd{CORSOrigins: []string{"*"}, CacheSize: 4, MaxBodyBytes: 16}

	memo, err := preview.NewMemo(cmd.CacheSize)
	require.NoError(t, err)
	srv := server.NewServer(memo, assets.New(assets.DefaultConfig()))

	ts := httptest.NewServer(cmd.middleware(zerolog.Nop(), srv.Handler()))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/normalize", "application/json", strings.NewReader(homeBundle))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}
