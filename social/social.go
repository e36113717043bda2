// Package social holds the optimistic mutations behind likes and comments.
package social

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/krisalay/optimistic-cache/snapshot"
	"github.com/krisalay/optimistic-cache/tempid"
	"github.com/krisalay/optimistic-cache/types"
)

// ErrEmptyComment is returned for a comment draft without text.
var ErrEmptyComment = errors.New("comment body is empty")

// LikesKey addresses the like counter of a post.
func LikesKey(postID string) types.Key {
	return types.NewKey("post", postID, "likes")
}

// CommentsKey addresses the comments of a post.
func CommentsKey(postID string) types.Key {
	return types.NewKey("post", postID, "comments")
}

// FeedKey addresses the post list view.
func FeedKey() types.Key {
	return types.NewKey("post", "feed")
}

// Draft is what the user typed.
type Draft struct {
	AuthorID string
	Body     string
}

// LikeResult holds the handles that undo a like toggle, counter first.
type LikeResult struct {
	Snapshots snapshot.Bundle
}

// CommentResult holds the handle that undoes a comment and the temp comment itself.
type CommentResult struct {
	Snapshot *snapshot.Handle
	Comment  Comment
}

// Mutator applies social actions to the cache.
type Mutator struct {
	snapshots *snapshot.Manager
	ids       *tempid.Allocator
	clock     func() time.Time
}

// NewMutator creates a Mutator. ids may be nil, in which case a default allocator is used.
func NewMutator(snapshots *snapshot.Manager, ids *tempid.Allocator) *Mutator {
	if ids == nil {
		ids = tempid.NewAllocator("")
	}
	return &Mutator{
		snapshots: snapshots,
		ids:       ids,
		clock:     time.Now,
	}
}

/*
ApplyLikeToggle likes (isLiked) or unlikes a post before the server confirms.

The counter at LikesKey gets +1, or -1 floored at zero, and UserLiked = isLiked.
The same change is mirrored into the post's row in the feed, if the feed is
cached and holds the post. Both keys are snapshotted; roll the bundle back as
one unit.
*/
func (m *Mutator) ApplyLikeToggle(ctx context.Context, postID string, isLiked bool) (LikeResult, error) {
	counter, err := m.snapshots.Apply(LikesKey(postID), types.Typed(func(old LikeCounter, _ bool) (LikeCounter, error) {
		return LikeCounter{
			Likes:     toggle(old.Likes, isLiked),
			UserLiked: isLiked,
		}, nil
	}))
	if err != nil {
		return LikeResult{}, err
	}

	feed, err := m.snapshots.Apply(FeedKey(), types.Typed(func(old Feed, exists bool) (Feed, error) {
		if !exists {
			return Feed{}, types.ErrSkipWrite
		}
		for i, row := range old.Posts {
			if row.ID != postID {
				continue
			}
			next := old.Clone().(Feed)
			next.Posts[i].Likes = toggle(row.Likes, isLiked)
			next.Posts[i].UserLiked = isLiked
			return next, nil
		}
		return Feed{}, types.ErrSkipWrite
	}))
	if err != nil {
		// keep the unit atomic: the counter must not stay changed on its own
		if rbErr := m.snapshots.Rollback(ctx, counter); rbErr != nil {
			return LikeResult{}, multierror.Append(err, rbErr)
		}
		return LikeResult{}, err
	}

	return LikeResult{Snapshots: snapshot.Bundle{counter, feed}}, nil
}

// ApplyComment prepends a speculative comment with a temp id to the post's comments.
func (m *Mutator) ApplyComment(ctx context.Context, postID string, d Draft) (CommentResult, error) {
	if strings.TrimSpace(d.Body) == "" {
		return CommentResult{}, ErrEmptyComment
	}

	c := Comment{
		ID:          m.ids.Allocate(),
		PostID:      postID,
		AuthorID:    d.AuthorID,
		Body:        d.Body,
		CreatedAt:   m.clock(),
		Speculative: true,
	}

	h, err := m.snapshots.Apply(CommentsKey(postID), types.Typed(func(old CommentList, _ bool) (CommentList, error) {
		comments := make([]Comment, 0, len(old.Comments)+1)
		comments = append(comments, c)
		comments = append(comments, old.Comments...)
		return CommentList{Comments: comments}, nil
	}))
	if err != nil {
		return CommentResult{}, err
	}

	return CommentResult{Snapshot: h, Comment: c}, nil
}

// Getter is the read side of the store.
type Getter interface {
	Get(key types.Key) (types.Value, bool)
}

// Likes returns the cached like counter of a post.
func Likes(s Getter, postID string) (LikeCounter, bool) {
	v, _ := s.Get(LikesKey(postID))
	return types.As[LikeCounter](v)
}

// Comments returns the cached comments of a post.
func Comments(s Getter, postID string) (CommentList, bool) {
	v, _ := s.Get(CommentsKey(postID))
	return types.As[CommentList](v)
}

// CachedFeed returns the cached feed.
func CachedFeed(s Getter) (Feed, bool) {
	v, _ := s.Get(FeedKey())
	return types.As[Feed](v)
}
