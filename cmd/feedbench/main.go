// feedbench 在真实 postgres + redis 上压测关注切换、并发点赞与时间线读取
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/socialgraph/config"
	"github.com/d60-Lab/socialgraph/internal/cache"
	"github.com/d60-Lab/socialgraph/internal/clock"
	"github.com/d60-Lab/socialgraph/internal/model"
	"github.com/d60-Lab/socialgraph/internal/service"
	rediscli "github.com/d60-Lab/socialgraph/pkg/cache"
	"github.com/d60-Lab/socialgraph/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func report(name string, ds []time.Duration) {
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	avg := time.Duration(0)
	if len(ds) > 0 {
		avg = sum / time.Duration(len(ds))
	}
	fmt.Printf("%-28s n=%-6d avg=%-12v p95=%-12v p99=%v\n", name, len(ds), avg, pct(ds, 0.95), pct(ds, 0.99))
}

// parallel 用 conc 个 goroutine 执行 n 次 fn，返回每次耗时
func parallel(n, conc int, fn func(i int) error) []time.Duration {
	out := make([]time.Duration, n)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				st := time.Now()
				mustDo(fn(i))
				out[i] = time.Since(st)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	rdb := must(rediscli.NewRedis(ctx, cfg))
	defer rdb.Close()

	N := envInt("N", 2000)           // 用户数
	FOLLOWS := envInt("FOLLOWS", 50) // 每个读者关注的人数
	POSTS := envInt("POSTS", 5)      // 每个作者发推数
	CONC := envInt("CONC", 16)
	READS := envInt("READS", 500)
	if FOLLOWS >= N {
		FOLLOWS = N - 1
	}

	// 可重复运行
	mustDo(db.Exec("TRUNCATE TABLE likes, retweets, bookmarks, replies, tweet_hashtags, hashtags, hashtag_users, hashtag_relations, trending_topics, tweets, follows, notifications, users CASCADE").Error)
	mustDo(rdb.FlushDB(ctx).Err())

	now := time.Now().UTC()
	users := make([]model.User, N)
	for i := range users {
		id := uuid.NewString()
		users[i] = model.User{
			ID: id, Username: "u" + id[:8], Email: id[:8] + "@example.com", Password: "p",
			IsActive: true, Notify: model.AllNotificationPrefs(), CreatedAt: now, UpdatedAt: now, LastActive: now,
		}
	}
	mustDo(db.CreateInBatches(&users, 1000).Error)

	clk := clock.System()
	index := cache.NewFollowingIndex(db, rdb, cfg.Redis.TTL)
	graph := service.NewRelationshipService(db, clk, nil, index)
	tweets := service.NewTweetService(db, clk, nil)
	engagement := service.NewEngagementService(db, clk, nil)
	feed := service.NewFeedService(db, index)
	trending := service.NewTrendingService(db, clk, nil, service.TrendingOptions{MinActivity: 1})

	fmt.Printf("N=%d FOLLOWS=%d POSTS=%d CONC=%d READS=%d\n", N, FOLLOWS, POSTS, CONC, READS)

	// 读者 i 关注 i+1..i+FOLLOWS
	follows := parallel(N*FOLLOWS, CONC, func(k int) error {
		i, j := k/FOLLOWS, k%FOLLOWS+1
		_, err := graph.ToggleFollow(ctx, users[i].ID, users[(i+j)%N].ID)
		return err
	})
	report("toggleFollow", follows)

	tags := []string{"golang", "rust", "postgres", "redis", "kafka"}
	var firstTweet string
	posts := parallel(N*POSTS, CONC, func(k int) error {
		t, err := tweets.Create(ctx, users[k%N].ID, service.CreateTweetInput{
			Content: fmt.Sprintf("post %d #%s", k, tags[k%len(tags)]),
		})
		if err == nil && k == 0 {
			firstTweet = t.ID
		}
		return err
	})
	report("createTweet", posts)

	// 同一条推文上的并发点赞，计数必须等于点赞人数
	likers := N
	if likers > 1000 {
		likers = 1000
	}
	likes := parallel(likers, CONC, func(i int) error {
		_, err := engagement.ToggleLike(ctx, users[i].ID, firstTweet)
		return err
	})
	report("toggleLike (hot tweet)", likes)
	var hot model.Tweet
	mustDo(db.First(&hot, "id = ?", firstTweet).Error)
	fmt.Printf("hot tweet likes=%d expected=%d\n", hot.Stats.LikesCount, likers)

	index.ResetCounters()
	cold := parallel(READS, CONC, func(i int) error {
		_, err := feed.Timeline(ctx, users[i%N].ID, 1, 20)
		return err
	})
	report("timeline (cold index)", cold)
	warm := parallel(READS, CONC, func(i int) error {
		_, err := feed.Timeline(ctx, users[i%N].ID, 1, 20)
		return err
	})
	report("timeline (warm index)", warm)
	c := index.Counters()
	fmt.Printf("following index hits=%d loads=%d\n", c.Hits, c.Loads)

	st := time.Now()
	counts := must(trending.Recompute(ctx))
	fmt.Printf("trending recompute: %v topics=%v\n", time.Since(st), counts)
}
