package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/socialgraph/internal/model"
)

type HashtagRepository interface {
	Get(ctx context.Context, tag string) (*model.Hashtag, error)
	GetMany(ctx context.Context, tags []string) (map[string]*model.Hashtag, error)
	RecordUsage(ctx context.Context, tag, userID string, at time.Time) error
	AddCooccurrence(ctx context.Context, tags []string) error
	Related(ctx context.Context, tag string, limit int) ([]model.HashtagRelation, error)
	ResetWindow(ctx context.Context, w model.HashtagWindow) (int64, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]*model.Hashtag, error)
	SetFlags(ctx context.Context, tag string, fields map[string]any) error
}

type hashtagRepository struct {
	db *gorm.DB
}

func NewHashtagRepository(db *gorm.DB) HashtagRepository { return &hashtagRepository{db: db} }

func (r *hashtagRepository) Get(ctx context.Context, tag string) (*model.Hashtag, error) {
	var h model.Hashtag
	if err := r.db.WithContext(ctx).Where("hashtag = ?", tag).First(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *hashtagRepository) GetMany(ctx context.Context, tags []string) (map[string]*model.Hashtag, error) {
	out := make(map[string]*model.Hashtag, len(tags))
	if len(tags) == 0 {
		return out, nil
	}
	var rows []*model.Hashtag
	if err := r.db.WithContext(ctx).Where("hashtag IN ?", tags).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, h := range rows {
		out[h.Tag] = h
	}
	return out, nil
}

// RecordUsage 一次使用：总量与各窗口 +1，首次使用的用户计入 unique_users，today 超过峰值时刷新峰值
func (r *hashtagRepository) RecordUsage(ctx context.Context, tag, userID string, at time.Time) error {
	db := r.db.WithContext(ctx)
	seed := &model.Hashtag{ID: uuid.New().String(), Tag: tag, Category: "general", FirstUsed: at, LastUsed: at}
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hashtag"}}, DoNothing: true}).Create(seed).Error; err != nil {
		return err
	}

	res := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.HashtagUser{Hashtag: tag, UserID: userID, CreatedAt: at})
	if res.Error != nil {
		return res.Error
	}

	fields := map[string]any{
		"total_usage": gorm.Expr("total_usage + 1"),
		"today":       gorm.Expr("today + 1"),
		"this_week":   gorm.Expr("this_week + 1"),
		"this_month":  gorm.Expr("this_month + 1"),
		"peak_usage":  gorm.Expr("CASE WHEN today + 1 > peak_usage THEN today + 1 ELSE peak_usage END"),
		"peak_date":   gorm.Expr("CASE WHEN today + 1 > peak_usage THEN ? ELSE peak_date END", at),
		"last_used":   at,
	}
	if res.RowsAffected == 1 {
		fields["unique_users"] = gorm.Expr("unique_users + 1")
	}
	return db.Model(&model.Hashtag{}).Where("hashtag = ?", tag).UpdateColumns(fields).Error
}

// AddCooccurrence 同一条推文里出现的话题两两互相 +1
func (r *hashtagRepository) AddCooccurrence(ctx context.Context, tags []string) error {
	if len(tags) < 2 {
		return nil
	}
	rows := make([]model.HashtagRelation, 0, len(tags)*(len(tags)-1))
	for _, a := range tags {
		for _, b := range tags {
			if a != b {
				rows = append(rows, model.HashtagRelation{Hashtag: a, Related: b, Frequency: 1})
			}
		}
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "hashtag"}, {Name: "related"}},
		DoUpdates: clause.Assignments(map[string]any{"frequency": gorm.Expr("hashtag_relations.frequency + 1")}),
	}).Create(&rows).Error
}

func (r *hashtagRepository) Related(ctx context.Context, tag string, limit int) ([]model.HashtagRelation, error) {
	var out []model.HashtagRelation
	err := r.db.WithContext(ctx).
		Where("hashtag = ?", tag).
		Order("frequency DESC").Order("related ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ResetWindow 唯一允许降低窗口计数的入口，total_usage 不受影响
func (r *hashtagRepository) ResetWindow(ctx context.Context, w model.HashtagWindow) (int64, error) {
	switch w {
	case model.WindowToday, model.WindowWeek, model.WindowMonth:
	default:
		return 0, fmt.Errorf("unknown hashtag window %q", w)
	}
	col := string(w)
	res := r.db.WithContext(ctx).Model(&model.Hashtag{}).
		Where(col+" <> ?", 0).
		UpdateColumn(col, 0)
	return res.RowsAffected, res.Error
}

// likeEscaper 转义 LIKE 通配符，配合 ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func (r *hashtagRepository) Suggest(ctx context.Context, prefix string, limit int) ([]*model.Hashtag, error) {
	var out []*model.Hashtag
	err := r.db.WithContext(ctx).
		Where(`hashtag LIKE ? ESCAPE '\' AND is_blocked = ?`, likeEscaper.Replace(prefix)+"%", false).
		Order("total_usage DESC").Order("hashtag ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SetFlags 运营侧修改分类、屏蔽、推广
func (r *hashtagRepository) SetFlags(ctx context.Context, tag string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Hashtag{}).Where("hashtag = ?", tag).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
