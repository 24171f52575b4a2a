// Package domain answers whether a user may play a piece of content.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrContentNotFound = errors.New("content_not_found")

// ContentRef names an audiobook, optionally narrowed to one of its chapters.
type ContentRef struct {
	AudiobookID snowflake.ID  `json:"audiobook_id"`
	ChapterID   *snowflake.ID `json:"chapter_id,omitempty"`
}

type Source string

const (
	SourceNone         Source = ""
	SourceFree         Source = "free"
	SourceSample       Source = "sample"
	SourcePurchase     Source = "purchase"
	SourceSubscription Source = "subscription"
)

type Grant struct {
	Allowed bool   `json:"allowed"`
	Source  Source `json:"source,omitempty"`
}

type Service interface {
	HasAccess(ctx context.Context, userID snowflake.ID, ref ContentRef) (bool, error)
	// Resolve is HasAccess plus the source that granted access.
	Resolve(ctx context.Context, userID snowflake.ID, ref ContentRef) (Grant, error)
}
