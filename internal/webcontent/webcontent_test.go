package webcontent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"see https://example.com/page for details", "https://example.com/page"},
		{"(http://a.io/x).", "http://a.io/x"},
		{"no links here", ""},
		{"first http://one.dev then https://two.dev", "http://one.dev"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractURL(tt.in), tt.in)
	}
}

func TestText(t *testing.T) {
	doc := `<html><head><title>T</title><style>p{}</style></head>
<body><h1>Hello   world</h1><script>alert(1)</script><p>Second <b>line</b></p></body></html>`

	got, err := Text(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nSecond\nline", got)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "<p>reference text</p>")
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())
	got, err := f.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "reference text", got)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}
