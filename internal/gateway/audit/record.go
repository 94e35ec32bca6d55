package audit

import (
	"time"

	"github.com/edgecomet/revalidator/pkg/types"
)

// Record is one audited revalidation call
type Record struct {
	Timestamp time.Time
	RequestID string
	ClientIP  string
	Trigger   string // "webhook" or "manual"

	Action   string
	PostType string
	Slug     string
	PostID   *int64

	Tags  []string
	Paths []types.PathTarget

	Status   int
	Duration time.Duration
	Error    string
}

// NewRecord fills the request side of a record from a normalized payload
func NewRecord(requestID, clientIP, trigger string, payload *types.WebhookPayload) *Record {
	r := &Record{
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		ClientIP:  clientIP,
		Trigger:   trigger,
	}
	if payload != nil {
		r.Action = payload.Action
		r.PostType = payload.PostType
		r.Slug = payload.Slug
		r.PostID = payload.PostID.Value
	}
	return r
}

// WithScope attaches the computed scope
func (r *Record) WithScope(scope *types.InvalidationScope) *Record {
	if scope != nil {
		r.Tags = scope.Tags()
		r.Paths = scope.Paths()
	}
	return r
}

// Finish sets the outcome of the call
func (r *Record) Finish(status int, duration time.Duration, err error) *Record {
	r.Status = status
	r.Duration = duration
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
