package connector

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates_Functions(t *testing.T) {
	dir := t.TempDir()
	names := filepath.Join(dir, "names.txt")
	require.NoError(t, os.WriteFile(names, []byte("Alice\n\n  Bob  \n"), 0o644))

	e := NewTemplates()
	tests := map[string]*regexp.Regexp{
		"ID-{{uuid}}":                       regexp.MustCompile(`^ID-[0-9a-f-]{36}$`),
		"{{randomAlpha 5}}":                 regexp.MustCompile(`^[A-Za-z]{5}$`),
		"{{randomInt 10 20}}":               regexp.MustCompile(`^1[0-9]$`),
		`{{randomChoice "a" "b"}}`:          regexp.MustCompile(`^[ab]$`),
		`{{randomLine "` + names + `"}}`:    regexp.MustCompile(`^(Alice|Bob)$`),
		"{{randomUUID}}-{{randomInt 5 5}}": regexp.MustCompile(`^[0-9a-f-]{36}-5$`),
	}
	for text, want := range tests {
		t.Run(text, func(t *testing.T) {
			tmpl, err := e.Parse("test", text)
			require.NoError(t, err)
			for i := 0; i < 20; i++ {
				out, err := tmpl.Execute()
				require.NoError(t, err)
				assert.Regexp(t, want, out)
			}
		})
	}
}

func TestTemplates_MissingFile(t *testing.T) {
	tmpl, err := NewTemplates().Parse("missing", `{{randomLine "/does/not/exist"}}`)
	require.NoError(t, err)
	_, err = tmpl.Execute()
	assert.Error(t, err)
}

func TestTemplates_ParseError(t *testing.T) {
	_, err := NewTemplates().Parse("broken", "{{unknownFunc}}")
	assert.Error(t, err)
}

func TestDo_DecodesAndMapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"pseudonym"}`))
		case "/missing":
			http.Error(w, "no such record", http.StatusNotFound)
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(time.Second, false)

	var out struct{ Name string }
	code, err := Do(t.Context(), client, Request{
		Method: http.MethodPost,
		URL:    srv.URL + "/ok",
		Header: Bearer("abc"),
		Body:   map[string]string{"a": "b"},
		Out:    &out,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pseudonym", out.Name)

	code, err = Do(t.Context(), client, Request{Method: http.MethodGet, URL: srv.URL + "/missing"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, errors.Wrap(err, "reading"), ErrNotFound)

	_, err = Do(t.Context(), client, Request{Method: http.MethodGet, URL: srv.URL + "/fail"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "boom", statusErr.Body)
	assert.NotErrorIs(t, err, ErrNotFound)
}
