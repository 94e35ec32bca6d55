package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTemplate is used when the audit log template is not configured
const DefaultTemplate = "{timestamp} {request_id} {action} {post_type} {slug} {tags} {paths} {status} {duration_ms}"

// TemplateFormatter renders a Record through a line template with {field} placeholders
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	field string
	start int
	end   int
}

var validFields = map[string]bool{
	"timestamp":   true,
	"request_id":  true,
	"client_ip":   true,
	"trigger":     true,
	"action":      true,
	"post_type":   true,
	"slug":        true,
	"post_id":     true,
	"tags":        true,
	"paths":       true,
	"tag_count":   true,
	"path_count":  true,
	"status":      true,
	"duration_ms": true,
	"error":       true,
}

// NewTemplateFormatter parses template and rejects unknown placeholders
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	var placeholders []placeholder
	for i := 0; i < len(template); {
		start := strings.IndexByte(template[i:], '{')
		if start == -1 {
			break
		}
		start += i

		end := strings.IndexByte(template[start:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		field := template[start+1 : end]
		if field == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}
		if !validFields[field] {
			return nil, fmt.Errorf("unknown placeholder {%s}", field)
		}

		placeholders = append(placeholders, placeholder{field: field, start: start, end: end + 1})
		i = end + 1
	}

	return &TemplateFormatter{template: template, placeholders: placeholders}, nil
}

// Template returns the source template
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Format renders one line. Missing values render as "-".
func (f *TemplateFormatter) Format(r *Record) string {
	if len(f.placeholders) == 0 {
		return f.template
	}

	var b strings.Builder
	b.Grow(len(f.template) + 64)
	last := 0
	for _, p := range f.placeholders {
		b.WriteString(f.template[last:p.start])
		b.WriteString(fieldValue(r, p.field))
		last = p.end
	}
	b.WriteString(f.template[last:])
	return b.String()
}

func fieldValue(r *Record, field string) string {
	switch field {
	case "timestamp":
		return r.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
	case "request_id":
		return formatString(r.RequestID)
	case "client_ip":
		return formatString(r.ClientIP)
	case "trigger":
		return formatString(r.Trigger)
	case "action":
		return formatString(r.Action)
	case "post_type":
		return formatString(r.PostType)
	case "slug":
		return formatString(r.Slug)
	case "post_id":
		if r.PostID == nil {
			return "-"
		}
		return strconv.FormatInt(*r.PostID, 10)
	case "tags":
		return formatList(r.Tags)
	case "paths":
		paths := make([]string, len(r.Paths))
		for i, p := range r.Paths {
			paths[i] = p.String()
		}
		return formatList(paths)
	case "tag_count":
		return strconv.Itoa(len(r.Tags))
	case "path_count":
		return strconv.Itoa(len(r.Paths))
	case "status":
		return strconv.Itoa(r.Status)
	case "duration_ms":
		return strconv.FormatInt(r.Duration.Round(time.Millisecond).Milliseconds(), 10)
	case "error":
		return formatString(r.Error)
	default:
		return "-"
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return strconv.Quote(s)
}
