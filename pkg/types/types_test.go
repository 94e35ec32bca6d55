package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw  string
		want Action
	}{
		{"create", ActionCreate},
		{"  Publish ", ActionPublish},
		{"menu_update", ActionMenuUpdate},
		{"theme_settings_update", ActionThemeSettingsUpdate},
		{"trash", ActionUnknown},
		{"", ActionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAction(tt.raw))
		})
	}
}

func TestParseResourceType(t *testing.T) {
	tests := []struct {
		raw  string
		want ResourceType
	}{
		{"post", ResourceArticle},
		{"page", ResourceDocument},
		{"nav_menu", ResourceMenu},
		{"nav_menu_item", ResourceMenu},
		{"attachment", ResourceMedia},
		{"theme", ResourceTheme},
		{"user", ResourceUser},
		{"product", ResourceUnknown},
		{"", ResourceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResourceType(tt.raw))
		})
	}
}

func TestWebhookPayload_PostID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *int64
		wantRaw string
	}{
		{name: "number", body: `{"action":"update","post_id":42}`, want: int64Ptr(42), wantRaw: "42"},
		{name: "numeric string", body: `{"action":"update","post_id":"42"}`, want: int64Ptr(42), wantRaw: "42"},
		{name: "null", body: `{"action":"update","post_id":null}`},
		{name: "absent", body: `{"action":"update"}`},
		{name: "empty string", body: `{"action":"update","post_id":""}`},
		{name: "not numeric", body: `{"action":"update","post_id":"abc"}`, wantRaw: "abc"},
		{name: "fraction", body: `{"action":"update","post_id":4.5}`, wantRaw: "4.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p WebhookPayload
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			assert.Equal(t, tt.want, p.PostID.Value)
			assert.Equal(t, tt.wantRaw, p.PostID.Raw)
			assert.Equal(t, ActionUpdate, p.Event().Action)
		})
	}
}

func TestWebhookPayload_Event(t *testing.T) {
	var p WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{
		"action": "publish",
		"post_type": "post",
		"slug": " hello-world ",
		"post_id": "7",
		"post_name": "Hello World",
		"category_slug": "sport"
	}`), &p))

	ev := p.Event()
	assert.Equal(t, ActionPublish, ev.Action)
	assert.Equal(t, ResourceArticle, ev.ResourceType)
	assert.Equal(t, "hello-world", ev.Slug)
	require.NotNil(t, ev.ResourceID)
	assert.Equal(t, int64(7), *ev.ResourceID)
	assert.Equal(t, "Hello World", ev.PrincipalName)
	assert.Equal(t, "sport", ev.CategorySlug)
}

func TestFlexibleID_Marshal(t *testing.T) {
	out, err := json.Marshal(WebhookResponse{PostID: FlexibleID{Value: int64Ptr(42)}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"post_id":42`)

	out, err = json.Marshal(WebhookResponse{PostID: FlexibleID{Raw: "abc"}})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"post_id":"abc"`)

	out, err = json.Marshal(WebhookResponse{})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"post_id":null`)
}

func TestInvalidationScope(t *testing.T) {
	var sc InvalidationScope
	sc.AddTag("wordpress", "", "wordpress-article", "wordpress")
	sc.AddPath("/es", PathLayout)
	sc.AddPath("/", PathPage)
	sc.AddPath("", PathPage)
	sc.AddPath("/", PathPage)

	assert.Equal(t, []string{"wordpress", "wordpress-article"}, sc.Tags())
	assert.Equal(t, []PathTarget{
		{Path: "/", Kind: PathPage},
		{Path: "/es", Kind: PathLayout},
	}, sc.Paths())
	assert.Equal(t, 4, sc.Len())
	assert.True(t, sc.HasPath("/es", PathLayout))
	assert.False(t, sc.HasPath("/es", PathPage))

	other := NewInvalidationScope()
	other.AddTag("wordpress-sitemap")
	other.AddPath("/", PathLayout)
	sc.Merge(other)
	sc.Merge(nil)
	assert.True(t, sc.HasTag("wordpress-sitemap"))
	assert.Equal(t, 6, sc.Len())

	clone := NewInvalidationScope()
	clone.Merge(&sc)
	assert.True(t, clone.Equal(&sc))
	clone.AddTag("extra")
	assert.False(t, clone.Equal(&sc))
	assert.False(t, sc.Equal(nil))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "48h", want: 48 * time.Hour},
		{in: "0", want: 0},
		{in: "2d", want: 48 * time.Hour},
		{in: "1w", want: 7 * 24 * time.Hour},
		{in: "1.5d", want: 36 * time.Hour},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDuration_YAMLAndJSON(t *testing.T) {
	var cfg struct {
		Window Duration `yaml:"window"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("window: 2d\n"), &cfg))
	assert.Equal(t, 48*time.Hour, cfg.Window.ToDuration())

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"15s"`), &d))
	assert.Equal(t, 15*time.Second, d.ToDuration())
	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.ToDuration())

	assert.Equal(t, 5*time.Second, Duration(0).OrDefault(5*time.Second))
	assert.Equal(t, time.Second, Duration(time.Second).OrDefault(5*time.Second))
}

func TestErrors(t *testing.T) {
	upstream := &UpstreamFetchError{Operation: "posts", Status: 502}
	wrapped := &AuthenticationError{Message: "Invalid token", Cause: upstream}

	assert.ErrorIs(t, wrapped, ErrInvalidToken)
	assert.NotErrorIs(t, wrapped, ErrInvalidSecret)
	assert.True(t, IsUpstream(wrapped))
	assert.Equal(t, "Invalid token: upstream posts failed with status 502", wrapped.Error())

	partial := &PartialInvalidationError{
		Result: InvalidationResult{TagsInvalidated: 2},
		Target: "tag:wordpress-sitemap",
		Err:    errors.New("connection reset"),
	}
	var pe *PartialInvalidationError
	require.ErrorAs(t, error(partial), &pe)
	assert.Equal(t, 2, pe.Result.TagsInvalidated)
	assert.Contains(t, partial.Error(), "tag:wordpress-sitemap after 2 tags and 0 paths")

	ve := &ValidationError{Message: "Missing required parameters", Fields: map[string]bool{"hasToken": true, "hasId": false}}
	assert.Equal(t, "Missing required parameters (hasId)", ve.Error())
}

func int64Ptr(v int64) *int64 {
	return &v
}
