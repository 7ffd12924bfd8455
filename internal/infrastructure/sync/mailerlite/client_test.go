package mailerlite

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dailynoats/planner/internal/domain/planner"
	"github.com/dailynoats/planner/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTruncate(t *testing.T) {
	t.Run("950 characters become 897 plus ellipsis", func(t *testing.T) {
		plan := strings.Repeat("a", 950)

		out := Truncate(plan, FieldBudget)

		assert.Len(t, out, 900)
		assert.Equal(t, strings.Repeat("a", 897)+"...", out)
	})

	t.Run("within budget is unchanged", func(t *testing.T) {
		exact := strings.Repeat("b", 900)
		assert.Equal(t, exact, Truncate(exact, FieldBudget))
		assert.Equal(t, "", Truncate("", FieldBudget))
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		plan := strings.Repeat("é", 950)

		out := Truncate(plan, FieldBudget)

		assert.Equal(t, 900, utf8.RuneCountInString(out))
		assert.True(t, strings.HasSuffix(out, "..."))
		assert.True(t, utf8.ValidString(out))
	})
}

func TestProductSummary(t *testing.T) {
	out := ProductSummary([]planner.RecommendedProduct{
		{ID: "naked-noats", Name: "Naked N'Oats", Reason: "Lowest carbs"},
		{ID: "protein-boost", Reason: "<b>More</b> protein"},
	})

	assert.Equal(t,
		"<p><strong>Naked N&#39;Oats</strong><br>Lowest carbs</p>\n"+
			"<p><strong>protein-boost</strong><br>&lt;b&gt;More&lt;/b&gt; protein</p>",
		out)
	assert.Equal(t, "", ProductSummary(nil))
}

func TestSyncPlan(t *testing.T) {
	var got subscriberRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/subscribers", r.URL.Path)
		assert.Equal(t, "Bearer ml-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "ml-key", GroupID: "g-1", BaseURL: server.URL + "/api"}, nil, zaptest.NewLogger(t))
	err := client.SyncPlan(context.Background(), outbound.SyncRecord{
		Email:        "shopper@example.com",
		PlanMarkdown: strings.Repeat("p", 1000),
		Recommendations: []planner.RecommendedProduct{
			{ID: "naked-noats", Name: "Naked N'Oats", Reason: "Low carb"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "shopper@example.com", got.Email)
	assert.Equal(t, []string{"g-1"}, got.Groups)
	assert.Len(t, got.Fields["ai_plan"], 900)
	assert.Contains(t, got.Fields["ai_products"], "Naked N&#39;Oats")
}

func TestSyncPlan_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"The email must be a valid email address."}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", GroupID: "g", BaseURL: server.URL}, nil, zaptest.NewLogger(t))
	err := client.SyncPlan(context.Background(), outbound.SyncRecord{Email: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
}

func TestSyncPlan_SkippedWhenUnconfigured(t *testing.T) {
	for _, cfg := range []Config{{}, {APIKey: "k"}, {GroupID: "g"}} {
		client := NewClient(cfg, nil, zaptest.NewLogger(t))
		assert.False(t, client.Enabled())
		assert.NoError(t, client.SyncPlan(context.Background(), outbound.SyncRecord{Email: "a@b.co"}))
	}
}
