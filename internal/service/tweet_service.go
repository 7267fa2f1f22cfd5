package service

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/internal/textutil"
)

// CreateTweetInput 发推参数，空字段取默认值
type CreateTweetInput struct {
	Content      string           `json:"content" binding:"required,max=280"`
	Visibility   string           `json:"visibility"`
	AllowReplies string           `json:"allow_replies"`
	Media        []model.MediaRef `json:"media"`
	Location     string           `json:"location"`
}

// TweetPatch 编辑推文，nil 表示不修改
type TweetPatch struct {
	Content      *string `json:"content"`
	Visibility   *string `json:"visibility"`
	AllowReplies *string `json:"allow_replies"`
}

// TweetService 推文生命周期
type TweetService interface {
	Create(ctx context.Context, authorID string, in CreateTweetInput) (*model.Tweet, error)
	Edit(ctx context.Context, authorID, tweetID string, patch TweetPatch) (*model.Tweet, error)
	Delete(ctx context.Context, authorID, tweetID string) error
	UserTweets(ctx context.Context, authorID, viewerID string, page, pageSize int) (*FeedPage, error)
	LikedTweets(ctx context.Context, userID, viewerID string, page, pageSize int) (*FeedPage, error)
	Thread(ctx context.Context, tweetID, viewerID string, page, pageSize int) (*ThreadView, error)
}

// ThreadView 根推文及其线程内回复
type ThreadView struct {
	Root    *FeedItem   `json:"root"`
	Replies []*FeedItem `json:"replies"`
	PageInfo
}

type tweetService struct {
	writer *tweetWriter
	db     *gorm.DB
	clock  clock.Clock
	feed   *enricher
}

func NewTweetService(db *gorm.DB, clk clock.Clock, notifier Notifier) TweetService {
	return &tweetService{
		writer: &tweetWriter{db: db, clock: clk, notifier: orNop(notifier)},
		db:     db,
		clock:  clk,
		feed:   &enricher{db: db},
	}
}

func (s *tweetService) Create(ctx context.Context, authorID string, in CreateTweetInput) (*model.Tweet, error) {
	author, err := repository.NewUserRepository(s.db).Get(ctx, authorID)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	if !author.Visible() {
		return nil, apperr.InvalidState("account is not active")
	}
	t, err := s.writer.draft(ctx, authorID, in.Content, in.Media)
	if err != nil {
		return nil, err
	}
	if in.Visibility != "" {
		if !visibilities[in.Visibility] {
			return nil, apperr.Invalid("invalid visibility")
		}
		t.Visibility = in.Visibility
	}
	if in.AllowReplies != "" {
		if !replyScopes[in.AllowReplies] {
			return nil, apperr.Invalid("invalid reply setting")
		}
		t.AllowReplies = in.AllowReplies
	}
	t.LocationCode = strings.ToLower(strings.TrimSpace(in.Location))

	err = apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.writer.insert(ctx, tx, t)
		})
	})
	if err != nil {
		return nil, err
	}
	s.writer.published(ctx, t, t.Hashtags, t.Mentions)
	return t, nil
}

// Edit 仅作者可编辑；旧正文进入编辑历史，话题与提及重新解析
func (s *tweetService) Edit(ctx context.Context, authorID, tweetID string, patch TweetPatch) (*model.Tweet, error) {
	if patch.Content == nil && patch.Visibility == nil && patch.AllowReplies == nil {
		return nil, apperr.Invalid("nothing to update")
	}
	if patch.Content != nil {
		if err := validateContent(*patch.Content); err != nil {
			return nil, err
		}
	}
	if patch.Visibility != nil && !visibilities[*patch.Visibility] {
		return nil, apperr.Invalid("invalid visibility")
	}
	if patch.AllowReplies != nil && !replyScopes[*patch.AllowReplies] {
		return nil, apperr.Invalid("invalid reply setting")
	}

	var (
		ex       textutil.Extracted
		resolved []model.MentionRef
	)
	if patch.Content != nil {
		ex = textutil.Extract(*patch.Content)
		var err error
		if resolved, err = s.writer.resolveMentions(ctx, authorID, ex.Mentions); err != nil {
			return nil, err
		}
	}

	var (
		updated  *model.Tweet
		newTags  []string
		mentions []model.MentionRef
	)
	err := apperr.Retry(ctx, func() error {
		newTags, mentions = nil, nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			tweets := repository.NewTweetRepository(tx)
			t, err := tweets.Get(ctx, tweetID)
			if err != nil {
				return apperr.FromStore(err, "tweet not found")
			}
			if t.AuthorID != authorID {
				return apperr.PermissionDenied("you can only edit your own tweets")
			}
			now := s.clock.Now()
			fields := map[string]any{"updated_at": now}
			if patch.Visibility != nil {
				t.Visibility = *patch.Visibility
				fields["visibility"] = t.Visibility
			}
			if patch.AllowReplies != nil {
				t.AllowReplies = *patch.AllowReplies
				fields["allow_replies"] = t.AllowReplies
			}
			if patch.Content != nil && *patch.Content != t.Content {
				newTags = added(t.Hashtags, ex.Hashtags)
				mentions = addedMentions(t.Mentions, resolved)

				t.EditHistory = append(t.EditHistory, model.EditRecord{Content: t.Content, EditedAt: now})
				t.Content = *patch.Content
				t.Hashtags = ex.Hashtags
				t.Mentions = resolved
				t.IsEdited = true
				fields["content"] = t.Content
				fields["hashtags"] = t.Hashtags
				fields["mentions"] = t.Mentions
				fields["edit_history"] = t.EditHistory
				fields["is_edited"] = true
				if err := tweets.ReplaceHashtags(ctx, t.ID, hashtagRows(t)); err != nil {
					return err
				}
			}
			if err := tweets.Update(ctx, t.ID, fields); err != nil {
				return apperr.FromStore(err, "tweet not found")
			}
			t.UpdatedAt = now
			updated = t
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.writer.published(ctx, updated, newTags, mentions)
	return updated, nil
}

func added(before []string, after []string) []string {
	seen := make(map[string]bool, len(before))
	for _, t := range before {
		seen[t] = true
	}
	var out []string
	for _, t := range after {
		if !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

func addedMentions(before, after []model.MentionRef) []model.MentionRef {
	seen := make(map[string]bool, len(before))
	for _, m := range before {
		seen[m.UserID] = true
	}
	var out []model.MentionRef
	for _, m := range after {
		if !seen[m.UserID] {
			out = append(out, m)
		}
	}
	return out
}

// Delete 软删除，重复删除返回 NotFound
func (s *tweetService) Delete(ctx context.Context, authorID, tweetID string) error {
	return apperr.Retry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			tweets := repository.NewTweetRepository(tx)
			t, err := tweets.Get(ctx, tweetID)
			if err != nil {
				return apperr.FromStore(err, "tweet not found")
			}
			if t.AuthorID != authorID {
				return apperr.PermissionDenied("you can only delete your own tweets")
			}
			ok, err := tweets.SoftDelete(ctx, tweetID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound("tweet not found")
			}
			_, err = repository.NewUserRepository(tx).IncrStat(ctx, authorID, repository.ColTweetsCount, -1)
			return err
		})
	})
}

func (s *tweetService) UserTweets(ctx context.Context, authorID, viewerID string, page, pageSize int) (*FeedPage, error) {
	author, err := repository.NewUserRepository(s.db).Get(ctx, authorID)
	if err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	if !author.Visible() && authorID != viewerID {
		return nil, apperr.NotFound("user not found")
	}
	page, pageSize, offset := normalizePage(page, pageSize)
	rows, err := repository.NewTweetRepository(s.db).ListByAuthor(ctx, authorID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	return s.feed.page(ctx, viewerID, rows, page, pageSize)
}

func (s *tweetService) LikedTweets(ctx context.Context, userID, viewerID string, page, pageSize int) (*FeedPage, error) {
	if _, err := repository.NewUserRepository(s.db).Get(ctx, userID); err != nil {
		return nil, apperr.FromStore(err, "user not found")
	}
	page, pageSize, offset := normalizePage(page, pageSize)
	rows, err := repository.NewTweetRepository(s.db).ListLikedBy(ctx, userID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	return s.feed.page(ctx, viewerID, rows, page, pageSize)
}

// Thread 以根推文为入口；传入回复时先定位到它所在的线程根
func (s *tweetService) Thread(ctx context.Context, tweetID, viewerID string, page, pageSize int) (*ThreadView, error) {
	tweets := repository.NewTweetRepository(s.db)
	t, err := tweets.Get(ctx, tweetID)
	if err != nil {
		return nil, apperr.FromStore(err, "tweet not found")
	}
	rootID := t.ID
	if t.Kind == model.KindReply && t.Reply.ThreadID != "" {
		rootID = t.Reply.ThreadID
	}
	root := t
	if rootID != t.ID {
		if root, err = tweets.Get(ctx, rootID); err != nil {
			return nil, apperr.FromStore(err, "tweet not found")
		}
	}
	page, pageSize, offset := normalizePage(page, pageSize)
	replies, err := tweets.ListThread(ctx, rootID, offset, pageSize)
	if err != nil {
		return nil, err
	}
	items, err := s.feed.enrich(ctx, viewerID, append([]*model.Tweet{root}, replies...))
	if err != nil {
		return nil, err
	}
	return &ThreadView{Root: items[0], Replies: items[1:], PageInfo: pageInfo(page, pageSize, len(replies))}, nil
}
