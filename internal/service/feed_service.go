package service

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

const (
	detailLikers  = 10
	detailReplies = 5
)

// FeedItem 推文 + 作者资料 + 查看者自己的互动标记
type FeedItem struct {
	*model.Tweet
	Author       model.UserSummary  `json:"author"`
	QuotedTweet  *model.QuotedTweet `json:"quoted_tweet,omitempty"`
	ReplyTo      *model.ReplyRef    `json:"reply_to,omitempty"`
	IsLiked      bool               `json:"is_liked_by_user"`
	IsRetweeted  bool               `json:"is_retweeted_by_user"`
	IsBookmarked bool               `json:"is_bookmarked_by_user"`
}

type FeedPage struct {
	Items []*FeedItem `json:"items"`
	PageInfo
}

// TweetDetail 详情页：最近点赞者与最近的直接回复
type TweetDetail struct {
	*FeedItem
	Likers  []model.UserSummary `json:"likers"`
	Replies []*FeedItem         `json:"replies"`
}

// FolloweeSource 查询已接受关注的用户 id
type FolloweeSource interface {
	FolloweeIDs(ctx context.Context, userID string) ([]string, error)
}

type repoFollowees struct{ db *gorm.DB }

func (r repoFollowees) FolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	return repository.NewFollowRepository(r.db).FolloweeIDs(ctx, userID)
}

// FeedService 读时合并的时间线与推文详情
type FeedService interface {
	Timeline(ctx context.Context, viewerID string, page, pageSize int) (*FeedPage, error)
	TweetDetail(ctx context.Context, tweetID, viewerID string) (*TweetDetail, error)
}

type feedService struct {
	db        *gorm.DB
	followees FolloweeSource
	feed      *enricher
}

// NewFeedService followees 为 nil 时直接查库
func NewFeedService(db *gorm.DB, followees FolloweeSource) FeedService {
	if followees == nil {
		followees = repoFollowees{db: db}
	}
	return &feedService{db: db, followees: followees, feed: &enricher{db: db}}
}

// Timeline 成员 = 自己 ∪ 已接受关注的人，按发布时间倒序
func (s *feedService) Timeline(ctx context.Context, viewerID string, page, pageSize int) (*FeedPage, error) {
	if _, err := repository.NewUserRepository(s.db).Get(ctx, viewerID); err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	ids, err := s.followees.FolloweeIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	authors := append([]string{viewerID}, ids...)

	page, pageSize, offset := normalizePage(page, pageSize)
	rows, err := repository.NewTweetRepository(s.db).Timeline(ctx, authors, offset, pageSize)
	if err != nil {
		return nil, err
	}
	return s.feed.page(ctx, viewerID, rows, page, pageSize)
}

// TweetDetail 读取即计一次浏览，不保证精确
func (s *feedService) TweetDetail(ctx context.Context, tweetID, viewerID string) (*TweetDetail, error) {
	tweets := repository.NewTweetRepository(s.db)
	t, err := tweets.Get(ctx, tweetID)
	if err != nil {
		return nil, apperr.FromStore(err, "tweet not found")
	}
	if err := tweets.IncrViews(ctx, tweetID); err != nil {
		logger.Warn("view count update failed", zap.String("tweet", tweetID), zap.Error(err))
	} else {
		t.Stats.ViewsCount++
	}

	replies, err := tweets.ListDirectReplies(ctx, tweetID, detailReplies)
	if err != nil {
		return nil, err
	}
	items, err := s.feed.enrich(ctx, viewerID, append([]*model.Tweet{t}, replies...))
	if err != nil {
		return nil, err
	}

	likerIDs, err := repository.NewEngagementRepository(s.db).RecentLikers(ctx, tweetID, detailLikers)
	if err != nil {
		return nil, err
	}
	byID, err := repository.NewUserRepository(s.db).GetMany(ctx, likerIDs)
	if err != nil {
		return nil, err
	}
	likers := make([]model.UserSummary, 0, len(likerIDs))
	for _, id := range likerIDs {
		if u, ok := byID[id]; ok {
			likers = append(likers, u.Summary())
		}
	}
	return &TweetDetail{FeedItem: items[0], Likers: likers, Replies: items[1:]}, nil
}

// enricher 批量补齐作者资料与查看者的互动标记
type enricher struct {
	db *gorm.DB
}

func (e *enricher) page(ctx context.Context, viewerID string, rows []*model.Tweet, page, pageSize int) (*FeedPage, error) {
	items, err := e.enrich(ctx, viewerID, rows)
	if err != nil {
		return nil, err
	}
	return &FeedPage{Items: items, PageInfo: pageInfo(page, pageSize, len(rows))}, nil
}

func (e *enricher) enrich(ctx context.Context, viewerID string, rows []*model.Tweet) ([]*FeedItem, error) {
	tweetIDs := make([]string, len(rows))
	authorIDs := make([]string, 0, len(rows))
	for i, t := range rows {
		tweetIDs[i] = t.ID
		authorIDs = append(authorIDs, t.AuthorID)
	}
	authors, err := repository.NewUserRepository(e.db).GetMany(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	edges := repository.NewEngagementRepository(e.db)
	liked, err := edges.LikedSet(ctx, viewerID, tweetIDs)
	if err != nil {
		return nil, err
	}
	retweeted, err := edges.RetweetedSet(ctx, viewerID, tweetIDs)
	if err != nil {
		return nil, err
	}
	bookmarked, err := edges.BookmarkedSet(ctx, viewerID, tweetIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*FeedItem, len(rows))
	for i, t := range rows {
		item := &FeedItem{
			Tweet:        t,
			IsLiked:      liked[t.ID],
			IsRetweeted:  retweeted[t.ID],
			IsBookmarked: bookmarked[t.ID],
		}
		if a, ok := authors[t.AuthorID]; ok {
			item.Author = a.Summary()
		}
		switch v := t.Variant().(type) {
		case model.Quote:
			q := v.Of
			item.QuotedTweet = &q
		case model.ReplyVariant:
			r := v.To
			item.ReplyTo = &r
		}
		out[i] = item
	}
	return out, nil
}
