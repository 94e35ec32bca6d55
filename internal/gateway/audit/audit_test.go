package audit

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edgecomet/revalidator/internal/common/configtypes"
	"github.com/edgecomet/revalidator/pkg/types"
)

func sampleRecord(t *testing.T) *Record {
	t.Helper()
	var payload types.WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"action":"publish","post_type":"post","slug":"hello","post_id":"42"}`), &payload))

	sc := types.NewInvalidationScope()
	sc.AddTag("wordpress", "wordpress-article")
	sc.AddPath("/", types.PathPage)

	r := NewRecord("abc12-hook", "10.0.0.1", "webhook", &payload).WithScope(sc).Finish(200, 12*time.Millisecond, nil)
	r.Timestamp = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return r
}

func TestTemplateFormatter_Parse(t *testing.T) {
	tests := []struct {
		name     string
		template string
		wantErr  string
	}{
		{"default", DefaultTemplate, ""},
		{"static text", "revalidate", ""},
		{"empty", "", "cannot be empty"},
		{"unknown field", "{host}", "unknown placeholder {host}"},
		{"unclosed", "{action", "unclosed placeholder"},
		{"empty placeholder", "{}", "empty placeholder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTemplateFormatter(tt.template)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.template, f.Template())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTemplateFormatter_Format(t *testing.T) {
	r := sampleRecord(t)

	f, err := NewTemplateFormatter(DefaultTemplate)
	require.NoError(t, err)
	assert.Equal(t,
		`2026-03-01T10:00:00.000Z "abc12-hook" "publish" "post" "hello" wordpress,wordpress-article /#page 200 12`,
		f.Format(r))

	f, err = NewTemplateFormatter("id={post_id} n={tag_count}/{path_count} err={error} via {trigger} from {client_ip}")
	require.NoError(t, err)
	assert.Equal(t, `id=42 n=2/1 err=- via "webhook" from "10.0.0.1"`, f.Format(r))
}

func TestTemplateFormatter_EmptyValues(t *testing.T) {
	f, err := NewTemplateFormatter("{slug} {post_id} {tags} {paths}")
	require.NoError(t, err)

	r := NewRecord("", "", "manual", nil).Finish(500, 0, errors.New("redis down"))
	assert.Equal(t, "- - - -", f.Format(r))
	assert.Equal(t, "redis down", r.Error)
}

func TestTemplateFormatter_EscapesQuotes(t *testing.T) {
	f, err := NewTemplateFormatter("{slug}")
	require.NoError(t, err)

	r := &Record{Slug: "a \"quoted\"\nslug"}
	assert.Equal(t, `"a \"quoted\"\nslug"`, f.Format(r))
}

func TestNew_Disabled(t *testing.T) {
	e, err := New(configtypes.AuditLogConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NoopEmitter{}, e)
	e.Emit(&Record{})
	assert.NoError(t, e.Close())
}

func TestFileEmitter_WritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "revalidate.log")

	e, err := New(configtypes.AuditLogConfig{Enabled: true, Path: path, Template: "{request_id} {status}"}, zap.NewNop())
	require.NoError(t, err)

	e.Emit(&Record{RequestID: "one", Status: 200})
	e.Emit(&Record{RequestID: "two", Status: 500})
	require.NoError(t, e.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	assert.Equal(t, []string{`"one" 200`, `"two" 500`}, lines)
}

func TestFileEmitter_InvalidTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revalidate.log")

	e, err := NewFileEmitter(configtypes.AuditLogConfig{Enabled: true, Path: path, Template: "{url}"}, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, e)
	assert.Contains(t, err.Error(), "invalid template")
}
