package rendercache

import (
	"encoding/json"
	"time"

	"github.com/edgecomet/revalidator/pkg/types"
)

// NoticeKind says whether a notice names a tag or a path
type NoticeKind string

const (
	NoticeTag  NoticeKind = "tag"
	NoticePath NoticeKind = "path"
)

// Notice is published after each invalidation so render nodes holding
// local copies of the affected routes can drop them
type Notice struct {
	Kind     NoticeKind     `json:"kind"`
	Target   string         `json:"target"`
	PathKind types.PathKind `json:"path_kind,omitempty"`
	Entries  int            `json:"entries"`
	Sender   string         `json:"sender"`
	At       time.Time      `json:"at"`
}

// Encode returns the wire form of the notice
func (n Notice) Encode() (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeNotice parses a published notice
func DecodeNotice(payload string) (Notice, error) {
	var n Notice
	err := json.Unmarshal([]byte(payload), &n)
	return n, err
}
