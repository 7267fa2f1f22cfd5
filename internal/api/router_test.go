package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/socialgraph/config"
	"github.com/d60-Lab/socialgraph/internal/api/handler"
	"github.com/d60-Lab/socialgraph/internal/cache"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/ratelimit"
	"github.com/d60-Lab/socialgraph/internal/scheduler"
	"github.com/d60-Lab/socialgraph/internal/service"
	"github.com/d60-Lab/socialgraph/pkg/auth"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	limits *ratelimit.Store
}

func setupServer(t *testing.T, health func(context.Context) error) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := clock.System()
	jwt := auth.NewJWT("test-secret", "socialgraph", time.Hour)
	index := cache.NewFollowingIndex(db, rdb, time.Minute)
	notifications := service.NewNotificationService(db, clk)
	graph := service.NewRelationshipService(db, clk, notifications, index)
	limits := ratelimit.NewStore(rdb, time.Minute, 100)
	trending := service.NewTrendingService(db, clk, cache.NewTrendingCache(rdb, time.Minute), service.TrendingOptions{MinActivity: 1})
	hashtags := service.NewHashtagService(db, clk)

	cfg := &config.Config{}
	cfg.Trending.Cron = "*/10 * * * *"
	cfg.Hashtag.DailyResetCron = "0 0 * * *"
	cfg.Retention.Cron = "0 3 * * *"
	sched := scheduler.New()
	require.NoError(t, scheduler.Register(sched, cfg, trending, hashtags, service.NewRetentionService(db, clk)))

	h := handler.New(handler.Services{
		Users:         service.NewUserService(db, clk, jwt, graph),
		Relationships: graph,
		Tweets:        service.NewTweetService(db, clk, notifications),
		Engagement:    service.NewEngagementService(db, clk, notifications),
		Feed:          service.NewFeedService(db, index),
		Trending:      trending,
		Hashtags:      hashtags,
		Notifications: notifications,
		Messages:      service.NewMessageService(db, clk, notifications),
		Jobs:          sched,
	})
	engine := NewRouter(h, Options{
		Mode:       gin.TestMode,
		AdminToken: "ops-token",
		Identity:   jwt,
		Limiter:    limits,
		Health:     health,
	})
	return &testServer{t: t, engine: engine, limits: limits}
}

func (s *testServer) do(method, path, token string, body any, headers ...string) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

type account struct {
	ID    string
	Token string
}

func (s *testServer) register(name string) account {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": name,
		"email":    name + "@example.com",
		"password": "secret123",
	})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	return account{ID: res.User.ID, Token: res.Token}
}

func TestFollowPostLikeTimeline(t *testing.T) {
	s := setupServer(t, nil)
	alice := s.register("alice")
	bob := s.register("bob")

	code, env := s.do(http.MethodPost, "/api/v1/users/"+bob.ID+"/follow", alice.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.JSONEq(t, `{"following":true,"action":"followed","status":"accepted"}`, string(env.Data))

	code, env = s.do(http.MethodPost, "/api/v1/tweets", bob.Token, map[string]string{"content": "hello #golang"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	var tweet struct {
		ID       string   `json:"id"`
		Hashtags []string `json:"hashtags"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tweet))
	assert.Equal(t, []string{"golang"}, tweet.Hashtags)

	code, env = s.do(http.MethodPost, "/api/v1/tweets/"+tweet.ID+"/like", alice.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.JSONEq(t, `{"liked":true,"action":"liked","likes_count":1}`, string(env.Data))

	code, env = s.do(http.MethodGet, "/api/v1/timeline", alice.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var page struct {
		Items []struct {
			ID      string `json:"id"`
			IsLiked bool   `json:"is_liked_by_user"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, tweet.ID, page.Items[0].ID)
	assert.True(t, page.Items[0].IsLiked)

	code, env = s.do(http.MethodGet, "/api/v1/notifications/unread-count", bob.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"unread_count":2}`, string(env.Data))
}

func TestErrorStatuses(t *testing.T) {
	s := setupServer(t, nil)
	alice := s.register("alice")

	code, _ := s.do(http.MethodGet, "/api/v1/timeline", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/timeline", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/v1/tweets/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := s.do(http.MethodPost, "/api/v1/users/"+alice.ID+"/follow", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Message)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": "bad name!", "email": "bad@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"login": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/v1/tweets", alice.Token, map[string]string{"content": ""})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodGet, "/api/v1/trending?category=cooking", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPerActionRateLimit(t *testing.T) {
	s := setupServer(t, nil)
	alice := s.register("alice")
	s.limits.WithLimit(ActionTweet, 2)

	for i := 0; i < 2; i++ {
		code, env := s.do(http.MethodPost, "/api/v1/tweets", alice.Token, map[string]string{"content": fmt.Sprintf("post %d", i)})
		require.Equal(t, http.StatusCreated, code, env.Message)
	}
	code, _ := s.do(http.MethodPost, "/api/v1/tweets", alice.Token, map[string]string{"content": "one too many"})
	assert.Equal(t, http.StatusTooManyRequests, code)

	// 其他动作不受影响
	code, _ = s.do(http.MethodGet, "/api/v1/timeline", alice.Token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminRoutes(t *testing.T) {
	s := setupServer(t, nil)
	alice := s.register("alice")
	code, env := s.do(http.MethodPost, "/api/v1/tweets", alice.Token, map[string]string{"content": "#rust is fun"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, _ = s.do(http.MethodPost, "/api/v1/admin/trending/recompute", alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPost, "/api/v1/admin/trending/recompute", "", nil, "X-Admin-Token", "ops-token")
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.JSONEq(t, `{"job":"trending_recompute","locations":["global"]}`, string(env.Data))

	code, env = s.do(http.MethodGet, "/api/v1/trending", "", nil)
	require.Equal(t, http.StatusOK, code)
	var res struct {
		Location string `json:"location"`
		Topics   []struct {
			Hashtag string `json:"hashtag"`
			Rank    int    `json:"rank"`
		} `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "global", res.Location)
	require.Len(t, res.Topics, 1)
	assert.Equal(t, "rust", res.Topics[0].Hashtag)
	assert.Equal(t, 1, res.Topics[0].Rank)

	code, _ = s.do(http.MethodPatch, "/api/v1/admin/hashtags/rust", "", map[string]any{"is_blocked": true}, "X-Admin-Token", "ops-token")
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupServer(t, nil)
	code, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "socialgraph_http_requests_total")

	down := setupServer(t, func(context.Context) error { return errors.New("db down") })
	code, _ = down.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestRecomputeSkipsWhileScheduledRunActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sched := scheduler.New()
	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, sched.Add(scheduler.JobTrending, "*/10 * * * *", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = sched.RunNow(context.Background(), scheduler.JobTrending)
	}()
	<-started

	engine := NewRouter(handler.New(handler.Services{Jobs: sched}), Options{Mode: gin.TestMode, AdminToken: "ops-token"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/trending/recompute", nil)
	req.Header.Set("X-Admin-Token", "ops-token")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	<-done
}

func TestReactivateAndNotificationSettings(t *testing.T) {
	s := setupServer(t, nil)
	alice := s.register("alice")

	code, env := s.do(http.MethodGet, "/api/v1/me/notification-settings", alice.Token, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var prefs model.NotificationPrefs
	require.NoError(t, json.Unmarshal(env.Data, &prefs))
	assert.Equal(t, model.AllNotificationPrefs(), prefs)

	code, _ = s.do(http.MethodDelete, "/api/v1/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, code)
	login := map[string]string{"login": "alice", "password": "secret123"}
	code, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/v1/auth/reactivate", "", map[string]string{"login": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, env = s.do(http.MethodPost, "/api/v1/auth/reactivate", "", login)
	require.Equal(t, http.StatusOK, code, env.Message)
	code, _ = s.do(http.MethodPost, "/api/v1/auth/login", "", login)
	assert.Equal(t, http.StatusOK, code)
}

func TestTrendingUsersRoute(t *testing.T) {
	s := setupServer(t, nil)
	alice := s.register("alice")
	code, env := s.do(http.MethodPost, "/api/v1/tweets", alice.Token, map[string]string{"content": "hello"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = s.do(http.MethodGet, "/api/v1/trending/users", "", nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	var users []struct {
		User struct {
			Username string `json:"username"`
		} `json:"user"`
		TweetCount int64 `json:"tweet_count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].User.Username)
	assert.EqualValues(t, 1, users[0].TweetCount)
}
