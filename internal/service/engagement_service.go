package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/metrics"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
)

const (
	ActionLiked        = "liked"
	ActionUnliked      = "unliked"
	ActionRetweeted    = "retweeted"
	ActionQuoted       = "quoted"
	ActionUnretweeted  = "unretweeted"
	ActionBookmarked   = "bookmarked"
	ActionUnbookmarked = "unbookmarked"
)

type LikeResult struct {
	Liked      bool   `json:"liked"`
	Action     string `json:"action"`
	LikesCount int64  `json:"likes_count"`
}

type RetweetResult struct {
	Retweeted    bool              `json:"retweeted"`
	Action       string            `json:"action"`
	Kind         model.RetweetKind `json:"type"`
	QuoteTweetID *string           `json:"quote_tweet_id,omitempty"`
}

type BookmarkResult struct {
	Bookmarked bool   `json:"bookmarked"`
	Action     string `json:"action"`
}

// ReplyInput 回复正文
type ReplyInput struct {
	Content string           `json:"content" binding:"required,max=280"`
	Media   []model.MediaRef `json:"media"`
}

type ReplyResult struct {
	Reply *model.Reply `json:"reply"`
	Tweet *model.Tweet `json:"tweet"`
}

// EngagementService 点赞/转推/收藏/回复：边与冗余计数在同一事务内变更
type EngagementService interface {
	ToggleLike(ctx context.Context, userID, tweetID string) (*LikeResult, error)
	ToggleRetweet(ctx context.Context, userID, tweetID string, kind model.RetweetKind, comment string) (*RetweetResult, error)
	ToggleBookmark(ctx context.Context, userID, tweetID string) (*BookmarkResult, error)
	CreateReply(ctx context.Context, userID, parentTweetID string, in ReplyInput) (*ReplyResult, error)
}

type engagementService struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier Notifier
	writer   *tweetWriter
}

func NewEngagementService(db *gorm.DB, clk clock.Clock, notifier Notifier) EngagementService {
	n := orNop(notifier)
	return &engagementService{
		db:       db,
		clock:    clk,
		notifier: n,
		writer:   &tweetWriter{db: db, clock: clk, notifier: n},
	}
}

// actors 事务内加载操作者与目标推文
func actors(ctx context.Context, tx *gorm.DB, userID, tweetID string) (*model.User, *model.Tweet, error) {
	u, err := repository.NewUserRepository(tx).Get(ctx, userID)
	if err != nil {
		return nil, nil, apperr.FromStore(err, "user not found")
	}
	t, err := repository.NewTweetRepository(tx).Get(ctx, tweetID)
	if err != nil {
		return nil, nil, apperr.FromStore(err, "tweet not found")
	}
	return u, t, nil
}

// bump 推文与其作者的计数同时调整
func bump(ctx context.Context, tx *gorm.DB, t *model.Tweet, tweetCol, userCol string, delta int64) error {
	if _, err := repository.NewTweetRepository(tx).IncrStat(ctx, t.ID, tweetCol, delta); err != nil {
		return err
	}
	if userCol == "" {
		return nil
	}
	_, err := repository.NewUserRepository(tx).IncrStat(ctx, t.AuthorID, userCol, delta)
	return err
}

func (s *engagementService) ToggleLike(ctx context.Context, userID, tweetID string) (*LikeResult, error) {
	var (
		res    *LikeResult
		author string
	)
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, t, err := actors(ctx, tx, userID, tweetID)
			if err != nil {
				return err
			}
			author = t.AuthorID
			edges := repository.NewEngagementRepository(tx)

			removed, err := edges.DeleteLike(ctx, userID, tweetID)
			if err != nil {
				return err
			}
			if removed {
				if err := bump(ctx, tx, t, repository.ColTweetLikes, repository.ColLikesCount, -1); err != nil {
					return err
				}
				res = &LikeResult{Liked: false, Action: ActionUnliked, LikesCount: t.Stats.LikesCount - 1}
				return nil
			}

			inserted, err := edges.InsertLike(ctx, &model.Like{
				ID:            uuid.New().String(),
				UserID:        userID,
				TweetID:       tweetID,
				TweetAuthorID: t.AuthorID,
				CreatedAt:     s.clock.Now(),
			})
			if err != nil {
				return err
			}
			if inserted {
				if err := bump(ctx, tx, t, repository.ColTweetLikes, repository.ColLikesCount, 1); err != nil {
					return err
				}
			}
			res = &LikeResult{Liked: true, Action: ActionLiked, LikesCount: t.Stats.LikesCount + 1}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.IncToggle("like", res.Action)
	if res.Liked && author != userID {
		s.notifier.Notify(ctx, NotifyEvent{RecipientID: author, FromUserID: userID, Type: model.NotifyLike, TweetID: tweetID})
	}
	return res, nil
}

// ToggleRetweet 转推与引用各自独立切换；引用会生成一条带原推快照的新推文
func (s *engagementService) ToggleRetweet(ctx context.Context, userID, tweetID string, kind model.RetweetKind, comment string) (*RetweetResult, error) {
	if kind == "" {
		kind = model.RetweetPlain
	}
	if kind != model.RetweetPlain && kind != model.RetweetQuote {
		return nil, apperr.Invalid("retweet type must be retweet or quote")
	}

	var (
		res       *RetweetResult
		author    string
		quote     *model.Tweet
		statCol   = repository.ColTweetRetweets
		notifyTyp = model.NotifyRetweet
	)
	var draft *model.Tweet
	if kind == model.RetweetQuote {
		statCol, notifyTyp = repository.ColTweetQuotes, model.NotifyQuote
		// 撤销引用时不需要正文
		if strings.TrimSpace(comment) != "" {
			d, err := s.writer.draft(ctx, userID, comment, nil)
			if err != nil {
				return nil, err
			}
			draft = d
		}
	}

	err := apperr.Retry(ctx, func() error {
		quote = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, t, err := actors(ctx, tx, userID, tweetID)
			if err != nil {
				return err
			}
			if t.AuthorID == userID {
				return apperr.InvalidState("you cannot retweet your own tweets")
			}
			author = t.AuthorID
			edges := repository.NewEngagementRepository(tx)

			existing, err := edges.FindRetweet(ctx, userID, tweetID, kind)
			if err != nil {
				return err
			}
			if existing != nil {
				removed, err := edges.DeleteRetweet(ctx, existing.ID)
				if err != nil {
					return err
				}
				if removed {
					if err := bump(ctx, tx, t, statCol, "", -1); err != nil {
						return err
					}
					if existing.QuoteTweetID != nil {
						if err := unquote(ctx, tx, *existing.QuoteTweetID, userID); err != nil {
							return err
						}
					}
				}
				res = &RetweetResult{Retweeted: false, Action: ActionUnretweeted, Kind: kind}
				return nil
			}

			edge := &model.Retweet{
				ID:             uuid.New().String(),
				UserID:         userID,
				TweetID:        tweetID,
				Kind:           kind,
				OriginalUserID: t.AuthorID,
				CreatedAt:      s.clock.Now(),
			}
			if kind == model.RetweetQuote {
				if draft == nil {
					return apperr.Invalid("a quote needs a comment")
				}
				q, err := s.quoteOf(ctx, tx, draft, t)
				if err != nil {
					return err
				}
				edge.Comment = comment
				edge.QuoteTweetID = &q.ID
				quote = q
			}
			inserted, err := edges.InsertRetweet(ctx, edge)
			if err != nil {
				return err
			}
			if !inserted {
				// 并发的同一切换已生效，回滚本次引用推文
				if quote != nil {
					return apperr.Conflict("quote already exists")
				}
				res = &RetweetResult{Retweeted: true, Action: ActionRetweeted, Kind: kind}
				return nil
			}
			if err := bump(ctx, tx, t, statCol, "", 1); err != nil {
				return err
			}
			action := ActionRetweeted
			if quote != nil {
				action = ActionQuoted
			}
			res = &RetweetResult{Retweeted: true, Action: action, Kind: kind, QuoteTweetID: edge.QuoteTweetID}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.IncToggle(string(kind), res.Action)
	if quote != nil {
		s.writer.published(ctx, quote, quote.Hashtags, quote.Mentions)
	}
	if res.Retweeted {
		s.notifier.Notify(ctx, NotifyEvent{RecipientID: author, FromUserID: userID, Type: notifyTyp, TweetID: tweetID})
	}
	return res, nil
}

// quoteOf 基于草稿生成引用推文并写入，快照取原推当前内容
func (s *engagementService) quoteOf(ctx context.Context, tx *gorm.DB, draft *model.Tweet, orig *model.Tweet) (*model.Tweet, error) {
	origAuthor, err := repository.NewUserRepository(tx).Get(ctx, orig.AuthorID)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	q := *draft
	posted := orig.CreatedAt
	q.Kind = model.KindQuote
	q.Quoted = model.QuotedTweet{
		TweetID:  orig.ID,
		UserID:   orig.AuthorID,
		Username: origAuthor.Username,
		Content:  orig.Content,
		PostedAt: &posted,
	}
	if err := s.writer.insert(ctx, tx, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// unquote 软删除引用推文并回退作者的推文数
func unquote(ctx context.Context, tx *gorm.DB, quoteTweetID, userID string) error {
	deleted, err := repository.NewTweetRepository(tx).SoftDelete(ctx, quoteTweetID)
	if err != nil || !deleted {
		return err
	}
	_, err = repository.NewUserRepository(tx).IncrStat(ctx, userID, repository.ColTweetsCount, -1)
	return err
}

func (s *engagementService) ToggleBookmark(ctx context.Context, userID, tweetID string) (*BookmarkResult, error) {
	var res *BookmarkResult
	err := apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, t, err := actors(ctx, tx, userID, tweetID)
			if err != nil {
				return err
			}
			edges := repository.NewEngagementRepository(tx)
			removed, err := edges.DeleteBookmark(ctx, userID, tweetID)
			if err != nil {
				return err
			}
			if removed {
				res = &BookmarkResult{Bookmarked: false, Action: ActionUnbookmarked}
				return bump(ctx, tx, t, repository.ColTweetBookmarks, "", -1)
			}
			inserted, err := edges.InsertBookmark(ctx, &model.Bookmark{
				ID:        uuid.New().String(),
				UserID:    userID,
				TweetID:   tweetID,
				CreatedAt: s.clock.Now(),
			})
			if err != nil {
				return err
			}
			res = &BookmarkResult{Bookmarked: true, Action: ActionBookmarked}
			if inserted {
				return bump(ctx, tx, t, repository.ColTweetBookmarks, "", 1)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.IncToggle("bookmark", res.Action)
	return res, nil
}

// CreateReply 线程 id 继承父推文所在线程（父为根时即父自身），层级为父层级 +1
func (s *engagementService) CreateReply(ctx context.Context, userID, parentTweetID string, in ReplyInput) (*ReplyResult, error) {
	t, err := s.writer.draft(ctx, userID, in.Content, in.Media)
	if err != nil {
		return nil, err
	}
	var (
		res         *ReplyResult
		parentOwner string
	)
	err = apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			u, parent, err := actors(ctx, tx, userID, parentTweetID)
			if err != nil {
				return err
			}
			if !u.Visible() {
				return apperr.InvalidState("account is not active")
			}
			parentAuthor, err := repository.NewUserRepository(tx).Get(ctx, parent.AuthorID)
			if err != nil {
				return apperr.FromStore(err, "user not found")
			}
			parentOwner = parent.AuthorID

			threadID := parent.ID
			if parent.Kind == model.KindReply && parent.Reply.ThreadID != "" {
				threadID = parent.Reply.ThreadID
			}
			level := parent.Reply.Level + 1

			reply := *t
			reply.Kind = model.KindReply
			reply.Reply = model.ReplyRef{
				ParentTweetID:  parent.ID,
				ParentUserID:   parent.AuthorID,
				ParentUsername: parentAuthor.Username,
				ThreadID:       threadID,
				Level:          level,
			}
			if err := s.writer.insert(ctx, tx, &reply); err != nil {
				return err
			}
			edge := &model.Reply{
				ID:            uuid.New().String(),
				UserID:        userID,
				TweetID:       reply.ID,
				ParentTweetID: parent.ID,
				ParentUserID:  parent.AuthorID,
				ThreadID:      threadID,
				Level:         level,
				CreatedAt:     reply.CreatedAt,
			}
			if err := repository.NewReplyRepository(tx).Create(ctx, edge); err != nil {
				return err
			}
			if _, err := repository.NewTweetRepository(tx).IncrStat(ctx, parent.ID, repository.ColTweetReplies, 1); err != nil {
				return err
			}
			res = &ReplyResult{Reply: edge, Tweet: &reply}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	metrics.IncToggle("reply", "created")
	s.writer.published(ctx, res.Tweet, res.Tweet.Hashtags, res.Tweet.Mentions)
	if parentOwner != userID {
		s.notifier.Notify(ctx, NotifyEvent{RecipientID: parentOwner, FromUserID: userID, Type: model.NotifyReply, TweetID: res.Tweet.ID})
	}
	return res, nil
}
