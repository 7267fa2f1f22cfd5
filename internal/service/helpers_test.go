package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
)

var testEpoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// setupDB 每个测试独立的内存库，单连接让并发事务串行执行
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

type userOpt func(*model.User)

func privateAccount(u *model.User) { u.IsPrivate = true }

func seedUser(t *testing.T, db *gorm.DB, name string, opts ...userOpt) *model.User {
	t.Helper()
	u := &model.User{
		ID:          uuid.New().String(),
		Username:    name,
		Email:       name + "@example.com",
		Password:    "x",
		DisplayName: name,
		IsActive:    true,
		Notify:      model.AllNotificationPrefs(),
		CreatedAt:   testEpoch,
		UpdatedAt:   testEpoch,
	}
	for _, o := range opts {
		o(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id string) *model.User {
	t.Helper()
	var u model.User
	require.NoError(t, db.First(&u, "id = ?", id).Error)
	return &u
}

func reloadTweet(t *testing.T, db *gorm.DB, id string) *model.Tweet {
	t.Helper()
	var tw model.Tweet
	require.NoError(t, db.First(&tw, "id = ?", id).Error)
	return &tw
}

func countRows(t *testing.T, db *gorm.DB, m any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Where(query, args...).Count(&n).Error)
	return n
}

// post 发一条推文并把时钟推进一秒，保证 created_at 各不相同
func post(t *testing.T, svc TweetService, clk *clock.Fixed, authorID, content string) *model.Tweet {
	t.Helper()
	tw, err := svc.Create(context.Background(), authorID, CreateTweetInput{Content: content})
	require.NoError(t, err)
	clk.Advance(time.Second)
	return tw
}

// recorder 记录收到的通知事件
type recorder struct {
	mu     sync.Mutex
	events []NotifyEvent
}

func (r *recorder) Notify(_ context.Context, ev NotifyEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) of(typ model.NotificationType) []NotifyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NotifyEvent
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
