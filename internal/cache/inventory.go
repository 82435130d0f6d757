package cache

import (
	"context"
	"fmt"
	"time"
)

// DiscussionKeyPrefix holds the bare discussion row, without comments or like counts.
const DiscussionKeyPrefix = "forum:discussion:%d"

const DiscussionTTL = 10 * time.Minute

func DiscussionKey(discussionID uint) string {
	return fmt.Sprintf(DiscussionKeyPrefix, discussionID)
}

// Invalidate removes keys, ignoring errors and a missing client.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

func InvalidateDiscussion(ctx context.Context, discussionID uint) {
	Invalidate(ctx, DiscussionKey(discussionID))
}
