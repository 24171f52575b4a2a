package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetAudiobook(ctx context.Context, id snowflake.ID) (*Audiobook, error)
	GetChapter(ctx context.Context, id snowflake.ID) (*Chapter, error)
	BuildCart(ctx context.Context, contentIDs []snowflake.ID) (CartSnapshot, error)
}

var (
	ErrAudiobookNotFound = errors.New("audiobook_not_found")
	ErrChapterNotFound   = errors.New("chapter_not_found")
	ErrFreeContent       = errors.New("free_content_not_purchasable")
)
