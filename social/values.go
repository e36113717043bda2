package social

import (
	"fmt"
	"time"

	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

// LikeCounter is the value at LikesKey.
type LikeCounter struct {
	Likes     int64
	UserLiked bool
}

func (LikeCounter) Kind() types.Kind     { return types.KindLikeCounter }
func (c LikeCounter) Clone() types.Value { return c }

// toggle applies a like (+1) or an unlike (-1, floored at zero).
func toggle(likes int64, isLiked bool) int64 {
	if isLiked {
		return likes + 1
	}
	if likes > 0 {
		return likes - 1
	}
	return 0
}

// PostSummary is one row of the feed list view. Likes mirror LikeCounter.
type PostSummary struct {
	ID           string
	AuthorID     string
	Title        string
	Likes        int64
	UserLiked    bool
	CommentCount int
}

// Feed is the denormalized list view at FeedKey.
type Feed struct {
	Posts []PostSummary
}

func (Feed) Kind() types.Kind { return types.KindPostFeed }

func (f Feed) Clone() types.Value {
	f.Posts = append([]PostSummary(nil), f.Posts...)
	return f
}

// Comment is a comment on a post. Speculative comments carry a temp id.
type Comment struct {
	ID          string
	PostID      string
	AuthorID    string
	Body        string
	CreatedAt   time.Time
	Speculative bool
}

func (c Comment) RecordID() string    { return c.ID }
func (c Comment) IsSpeculative() bool { return c.Speculative }

// CommentList is the value at CommentsKey, newest first.
type CommentList struct {
	Comments []Comment
}

func (CommentList) Kind() types.Kind { return types.KindCommentList }

func (l CommentList) Clone() types.Value {
	l.Comments = append([]Comment(nil), l.Comments...)
	return l
}

// Replace implements types.Collection.
func (l CommentList) Replace(id string, rec types.Record) (types.Collection, bool, error) {
	c, ok := rec.(Comment)
	if !ok {
		return nil, false, fmt.Errorf("%w: comment list cannot hold %T", types.ErrRecordType, rec)
	}
	c.Speculative = false

	comments, found := tempid.ReplaceRecord(l.Comments, id, c)
	return CommentList{Comments: comments}, found, nil
}

// Remove implements types.Collection.
func (l CommentList) Remove(id string) (types.Collection, bool) {
	comments, _, found := tempid.RemoveRecord(l.Comments, id)
	return CommentList{Comments: comments}, found
}
