package urlfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	apperrors "github.com/dailynoats/planner/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const plainPage = `<!doctype html>
<html><head><title>Grandma's Oatmeal</title><style>body{color:red}</style></head>
<body>
<nav>Home | Recipes</nav>
<h1>Grandma's   Oatmeal</h1>
<ul><li>1 cup rolled oats</li><li>2 cups milk</li></ul>
<p>Simmer for 10 minutes.</p>
<script>trackEverything()</script>
</body></html>`

const ldPage = `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
  {"@type":"WebPage","name":"ignored"},
  {"@type":["Recipe"],"name":"Banana Bread","recipeYield":["8","8 slices"],"totalTime":"PT1H",
   "recipeIngredient":["3 bananas","2 cups flour &amp; salt"],
   "recipeInstructions":[
     {"@type":"HowToSection","name":"Prep","itemListElement":[{"@type":"HowToStep","text":"Mash bananas."}]},
     {"@type":"HowToStep","text":"Bake 60 minutes."},
     "Cool."
   ]}
]}</script></head><body><p>Lots of life story text</p></body></html>`

func TestExtractText_VisibleText(t *testing.T) {
	text, err := ExtractText(strings.NewReader(plainPage))
	require.NoError(t, err)

	assert.Equal(t, "Grandma's Oatmeal\n1 cup rolled oats\n2 cups milk\nSimmer for 10 minutes.", text)
}

func TestExtractText_PrefersJSONLD(t *testing.T) {
	text, err := ExtractText(strings.NewReader(ldPage))
	require.NoError(t, err)

	assert.Equal(t, "Banana Bread\n"+
		"Servings: 8\n"+
		"totalTime: PT1H\n"+
		"\n"+
		"Ingredients:\n"+
		"- 3 bananas\n"+
		"- 2 cups flour & salt\n"+
		"\n"+
		"Steps:\n"+
		"1. Mash bananas.\n"+
		"2. Bake 60 minutes.\n"+
		"3. Cool.", text)
	assert.NotContains(t, text, "life story")
}

func TestFetchRecipeText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/recipe":
			assert.Contains(t, r.Header.Get("User-Agent"), "DailyNoats")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(plainPage))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("  Oats \n\n milk  "))
		case "/image":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50})
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body><script>x()</script></body></html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	f := NewFetcher(Config{AllowPrivateNetworks: true}, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	text, err := f.FetchRecipeText(ctx, server.URL+"/recipe")
	require.NoError(t, err)
	assert.Contains(t, text, "1 cup rolled oats")

	text, err = f.FetchRecipeText(ctx, server.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "Oats\nmilk", text)

	for _, path := range []string{"/image", "/empty", "/missing"} {
		_, err := f.FetchRecipeText(ctx, server.URL+path)
		assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput), path)
	}
}

func TestFetchRecipeText_RejectsBadURLs(t *testing.T) {
	f := NewFetcher(Config{}, nil, zaptest.NewLogger(t))

	for _, raw := range []string{"", "ftp://example.com/r", "file:///etc/passwd", "example.com/recipe", "https://"} {
		_, err := f.FetchRecipeText(context.Background(), raw)
		assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput), raw)
	}
}

func TestFetchRecipeText_RespectsSizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer server.Close()

	f := NewFetcher(Config{MaxBytes: 100, AllowPrivateNetworks: true}, nil, zaptest.NewLogger(t))
	text, err := f.FetchRecipeText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, text, 100)
}

func TestFetchRecipeText_BlocksPrivateAddresses(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("internal secrets"))
	}))
	defer server.Close()

	port := server.URL[strings.LastIndex(server.URL, ":")+1:]
	f := NewFetcher(Config{}, nil, zaptest.NewLogger(t))

	for _, raw := range []string{
		server.URL,
		"http://localhost:" + port + "/recipe",
		"http://[::1]:" + port + "/recipe",
		"http://169.254.169.254/latest/meta-data/",
		"http://10.0.0.8/recipe",
	} {
		_, err := f.FetchRecipeText(context.Background(), raw)
		require.Error(t, err, raw)
		assert.True(t, apperrors.Is(err, apperrors.CodeInvalidInput), raw)
		assert.ErrorIs(t, err, errBlockedAddress, raw)
	}
	assert.Zero(t, hits.Load())
}

func TestFetchRecipeText_InstrumentWrapsGuardedTransport(t *testing.T) {
	var wrapped http.RoundTripper
	f := NewFetcher(Config{}, func(base http.RoundTripper) http.RoundTripper {
		wrapped = base
		return base
	}, zaptest.NewLogger(t))

	require.IsType(t, &http.Transport{}, wrapped)
	assert.Nil(t, wrapped.(*http.Transport).Proxy)

	_, err := f.FetchRecipeText(context.Background(), "http://127.0.0.1:9/recipe")
	assert.ErrorIs(t, err, errBlockedAddress)
}

func TestDialControl(t *testing.T) {
	tests := []struct {
		address string
		blocked bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"172.16.0.1:443", true},
		{"192.168.1.1:80", true},
		{"169.254.169.254:80", true},
		{"0.0.0.0:80", true},
		{"100.64.0.1:80", true},
		{"[::1]:443", true},
		{"[fe80::1]:443", true},
		{"[fd00::1]:443", true},
		{"[::ffff:127.0.0.1]:80", true},
		{"93.184.216.34:443", false},
		{"[2606:4700::1111]:443", false},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := dialControl("tcp", tt.address, nil)
			if tt.blocked {
				assert.ErrorIs(t, err, errBlockedAddress)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckRedirect(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/next", nil)
	assert.NoError(t, checkRedirect(req, nil))

	via := make([]*http.Request, maxRedirects)
	assert.Error(t, checkRedirect(req, via))

	req.URL.Scheme = "file"
	assert.Error(t, checkRedirect(req, nil))
}
