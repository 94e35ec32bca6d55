package types

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Action is the kind of content change reported by the CMS
type Action string

const (
	ActionCreate              Action = "create"
	ActionUpdate              Action = "update"
	ActionPublish             Action = "publish"
	ActionDelete              Action = "delete"
	ActionUnpublish           Action = "unpublish"
	ActionMenuUpdate          Action = "menu_update"
	ActionMediaUpdate         Action = "media_update"
	ActionThemeSettingsUpdate Action = "theme_settings_update"
	ActionUserProfileUpdate   Action = "user_profile_update"
	ActionUnknown             Action = "unknown"
)

var knownActions = map[Action]bool{
	ActionCreate:              true,
	ActionUpdate:              true,
	ActionPublish:             true,
	ActionDelete:              true,
	ActionUnpublish:           true,
	ActionMenuUpdate:          true,
	ActionMediaUpdate:         true,
	ActionThemeSettingsUpdate: true,
	ActionUserProfileUpdate:   true,
}

// ParseAction normalizes a raw action string. Anything unrecognized maps to ActionUnknown.
func ParseAction(raw string) Action {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	if knownActions[a] {
		return a
	}
	return ActionUnknown
}

// ResourceType is the kind of CMS object an event refers to
type ResourceType string

const (
	ResourceArticle  ResourceType = "article"
	ResourceDocument ResourceType = "document"
	ResourceMenu     ResourceType = "menu"
	ResourceMedia    ResourceType = "media"
	ResourceTheme    ResourceType = "theme"
	ResourceUser     ResourceType = "user"
	ResourceUnknown  ResourceType = "unknown"
)

// ParseResourceType maps a CMS post_type onto a ResourceType
func ParseResourceType(raw string) ResourceType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "post", "article":
		return ResourceArticle
	case "page", "document":
		return ResourceDocument
	case "nav_menu", "nav_menu_item", "menu":
		return ResourceMenu
	case "attachment", "media":
		return ResourceMedia
	case "theme":
		return ResourceTheme
	case "user":
		return ResourceUser
	default:
		return ResourceUnknown
	}
}

// InvalidationEvent is the normalized form of an inbound webhook body.
// Action is always set; the remaining fields depend on the action.
type InvalidationEvent struct {
	Action        Action
	ResourceType  ResourceType
	Slug          string
	ResourceID    *int64
	PrincipalName string
	CategorySlug  string
}

// FlexibleID decodes a JSON number, a numeric string, or null.
// A value that is not an integer leaves Value nil and is kept verbatim in Raw.
type FlexibleID struct {
	Value *int64
	Raw   string
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}

	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	f.Raw = s
	if s == "" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		f.Value = &n
	}
	return nil
}

// MarshalJSON echoes the id as a number, the raw text when it was not numeric, or null when absent
func (f FlexibleID) MarshalJSON() ([]byte, error) {
	switch {
	case f.Value != nil:
		return json.Marshal(*f.Value)
	case f.Raw != "":
		return json.Marshal(f.Raw)
	default:
		return []byte("null"), nil
	}
}

// WebhookPayload is the JSON body posted by the CMS to /api/revalidate
type WebhookPayload struct {
	Action       string     `json:"action" validate:"required"`
	PostType     string     `json:"post_type"`
	Slug         string     `json:"slug"`
	PostID       FlexibleID `json:"post_id"`
	PostName     string     `json:"post_name"`
	CategorySlug string     `json:"category_slug,omitempty"`
}

// Event normalizes the payload into an InvalidationEvent
func (p *WebhookPayload) Event() InvalidationEvent {
	return InvalidationEvent{
		Action:        ParseAction(p.Action),
		ResourceType:  ParseResourceType(p.PostType),
		Slug:          strings.TrimSpace(p.Slug),
		ResourceID:    p.PostID.Value,
		PrincipalName: p.PostName,
		CategorySlug:  strings.TrimSpace(p.CategorySlug),
	}
}

// WebhookResponse is returned on a successful revalidation
type WebhookResponse struct {
	Success     bool       `json:"success"`
	Revalidated bool       `json:"revalidated"`
	Action      string     `json:"action"`
	PostType    string     `json:"post_type"`
	Slug        string     `json:"slug"`
	PostID      FlexibleID `json:"post_id"`
	PostName    string     `json:"post_name"`
	DurationMs  int64      `json:"duration_ms"`
}

// WebhookFailure is returned when the invalidation only partially completed
type WebhookFailure struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	TagsInvalidated  int    `json:"tags_invalidated"`
	PathsInvalidated int    `json:"paths_invalidated"`
	DurationMs       int64  `json:"duration_ms"`
}

// InvalidationResult reports what an executor run actually touched
type InvalidationResult struct {
	TagsInvalidated  int           `json:"tags_invalidated"`
	PathsInvalidated int           `json:"paths_invalidated"`
	Duration         time.Duration `json:"-"`
}

// DurationMs returns the run duration in whole milliseconds
func (r InvalidationResult) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// PathKind selects whether a path invalidation covers one page or the whole subtree
type PathKind string

const (
	PathPage   PathKind = "page"
	PathLayout PathKind = "layout"
)

// PathTarget is one locale-qualified route in an invalidation scope
type PathTarget struct {
	Path string   `json:"path"`
	Kind PathKind `json:"kind"`
}

func (p PathTarget) String() string {
	return p.Path + "#" + string(p.Kind)
}

// InvalidationScope is the set of tags and paths one content change renders stale.
// The zero value is an empty scope ready for use.
type InvalidationScope struct {
	tags  map[string]struct{}
	paths map[PathTarget]struct{}
}

// NewInvalidationScope creates an empty scope
func NewInvalidationScope() *InvalidationScope {
	return &InvalidationScope{
		tags:  make(map[string]struct{}),
		paths: make(map[PathTarget]struct{}),
	}
}

// AddTag adds tags to the scope, ignoring empty strings
func (s *InvalidationScope) AddTag(tags ...string) {
	if s.tags == nil {
		s.tags = make(map[string]struct{})
	}
	for _, tag := range tags {
		if tag != "" {
			s.tags[tag] = struct{}{}
		}
	}
}

// AddPath adds a path target to the scope
func (s *InvalidationScope) AddPath(path string, kind PathKind) {
	if s.paths == nil {
		s.paths = make(map[PathTarget]struct{})
	}
	if path == "" {
		return
	}
	s.paths[PathTarget{Path: path, Kind: kind}] = struct{}{}
}

// Merge unions other into s
func (s *InvalidationScope) Merge(other *InvalidationScope) {
	if other == nil {
		return
	}
	for tag := range other.tags {
		s.AddTag(tag)
	}
	for p := range other.paths {
		s.AddPath(p.Path, p.Kind)
	}
}

// HasTag reports whether tag is part of the scope
func (s *InvalidationScope) HasTag(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// HasPath reports whether the path is part of the scope with the given kind
func (s *InvalidationScope) HasPath(path string, kind PathKind) bool {
	_, ok := s.paths[PathTarget{Path: path, Kind: kind}]
	return ok
}

// Tags returns the tags in sorted order
func (s *InvalidationScope) Tags() []string {
	tags := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Paths returns the path targets sorted by path, then kind
func (s *InvalidationScope) Paths() []PathTarget {
	paths := make([]PathTarget, 0, len(s.paths))
	for p := range s.paths {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if paths[i].Path != paths[j].Path {
			return paths[i].Path < paths[j].Path
		}
		return paths[i].Kind < paths[j].Kind
	})
	return paths
}

// Len returns the number of tags plus paths
func (s *InvalidationScope) Len() int {
	return len(s.tags) + len(s.paths)
}

// Equal compares two scopes as sets
func (s *InvalidationScope) Equal(other *InvalidationScope) bool {
	if other == nil || len(s.tags) != len(other.tags) || len(s.paths) != len(other.paths) {
		return false
	}
	for tag := range s.tags {
		if _, ok := other.tags[tag]; !ok {
			return false
		}
	}
	for p := range s.paths {
		if _, ok := other.paths[p]; !ok {
			return false
		}
	}
	return true
}
