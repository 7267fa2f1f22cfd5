package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/socialgraph/internal/apperr"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/repository"
	"github.com/d60-Lab/socialgraph/internal/textutil"
	"github.com/d60-Lab/socialgraph/pkg/logger"
)

var (
	visibilities = map[string]bool{"public": true, "followers": true, "private": true}
	replyScopes  = map[string]bool{"everyone": true, "following": true, "mentioned": true}
	mediaTypes   = map[string]bool{"image": true, "video": true, "gif": true}
)

const maxMedia = 4

// tweetWriter 推文写入的公共步骤，发推、回复、引用共用
type tweetWriter struct {
	db       *gorm.DB
	clock    clock.Clock
	notifier Notifier
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return apperr.Invalid("tweet content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxTweetLength {
		return apperr.Invalid("tweet content cannot exceed 280 characters")
	}
	return nil
}

func validateMedia(media []model.MediaRef) error {
	if len(media) > maxMedia {
		return apperr.Invalid("a tweet can carry at most 4 media items")
	}
	for _, m := range media {
		if !mediaTypes[m.Type] || m.URL == "" {
			return apperr.Invalid("invalid media item")
		}
	}
	return nil
}

// draft 校验正文、解析话题与提及，返回尚未落库的推文
func (w *tweetWriter) draft(ctx context.Context, authorID, content string, media []model.MediaRef) (*model.Tweet, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := validateMedia(media); err != nil {
		return nil, err
	}
	ex := textutil.Extract(content)
	mentions, err := w.resolveMentions(ctx, authorID, ex.Mentions)
	if err != nil {
		return nil, err
	}
	now := w.clock.Now()
	return &model.Tweet{
		ID:           uuid.New().String(),
		AuthorID:     authorID,
		Content:      content,
		Kind:         model.KindTweet,
		Visibility:   "public",
		AllowReplies: "everyone",
		Hashtags:     ex.Hashtags,
		Mentions:     mentions,
		Media:        media,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// resolveMentions 只保留真实存在的用户
func (w *tweetWriter) resolveMentions(ctx context.Context, authorID string, names []string) ([]model.MentionRef, error) {
	out := make([]model.MentionRef, 0, len(names))
	if len(names) == 0 {
		return out, nil
	}
	users, err := repository.NewUserRepository(w.db).FindByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*model.User, len(users))
	for _, u := range users {
		byName[u.Username] = u
	}
	for _, n := range names {
		if u, ok := byName[n]; ok {
			out = append(out, model.MentionRef{UserID: u.ID, Username: u.Username, DisplayName: u.DisplayName})
		}
	}
	return out, nil
}

func hashtagRows(t *model.Tweet) []model.TweetHashtag {
	rows := make([]model.TweetHashtag, 0, len(t.Hashtags))
	for _, tag := range t.Hashtags {
		rows = append(rows, model.TweetHashtag{
			TweetID:      t.ID,
			Hashtag:      tag,
			AuthorID:     t.AuthorID,
			LocationCode: t.LocationCode,
			CreatedAt:    t.CreatedAt,
		})
	}
	return rows
}

// insert 在事务内写推文、话题展开行并给作者 tweets_count +1
func (w *tweetWriter) insert(ctx context.Context, tx *gorm.DB, t *model.Tweet) error {
	tweets := repository.NewTweetRepository(tx)
	if err := tweets.Create(ctx, t); err != nil {
		return err
	}
	if err := tweets.ReplaceHashtags(ctx, t.ID, hashtagRows(t)); err != nil {
		return err
	}
	ok, err := repository.NewUserRepository(tx).IncrStat(ctx, t.AuthorID, repository.ColTweetsCount, 1)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("user not found")
	}
	return nil
}

// published 提交后的副作用：话题计数与提及通知，失败只记日志
func (w *tweetWriter) published(ctx context.Context, t *model.Tweet, tags []string, mentions []model.MentionRef) {
	w.recordHashtags(ctx, t.AuthorID, tags, t.CreatedAt)
	for _, m := range mentions {
		if m.UserID == t.AuthorID {
			continue
		}
		w.notifier.Notify(ctx, NotifyEvent{RecipientID: m.UserID, FromUserID: t.AuthorID, Type: model.NotifyMention, TweetID: t.ID})
	}
}

func (w *tweetWriter) recordHashtags(ctx context.Context, authorID string, tags []string, at time.Time) {
	if len(tags) == 0 {
		return
	}
	repo := repository.NewHashtagRepository(w.db)
	for _, tag := range tags {
		if err := repo.RecordUsage(ctx, tag, authorID, at); err != nil {
			logger.Warn("hashtag usage update failed", zap.String("hashtag", tag), zap.Error(err))
		}
	}
	if err := repo.AddCooccurrence(ctx, tags); err != nil {
		logger.Warn("hashtag co-occurrence update failed", zap.Strings("hashtags", tags), zap.Error(err))
	}
}
