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

	"github.com/d60-Lab/autopress/config"
	"github.com/d60-Lab/autopress/internal/model"
	"github.com/d60-Lab/autopress/internal/repository"
	"github.com/d60-Lab/autopress/internal/service"
	"github.com/d60-Lab/autopress/internal/source"
	"github.com/d60-Lab/autopress/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
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

// feed 每轮在每个账号顶部追加 NEW 条帖子，返回最近 PAGE 条（新→旧）
type feed struct {
	mu    sync.Mutex
	page  int
	heads map[string]int
	base  time.Time
}

func (f *feed) advance(accounts []*model.Account, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range accounts {
		f.heads[a.UserID] += n
	}
}

func (f *feed) Fetch(ctx context.Context, account *model.Account) ([]source.Post, error) {
	f.mu.Lock()
	head := f.heads[account.UserID]
	f.mu.Unlock()

	out := make([]source.Post, 0, f.page)
	for i := head; i > 0 && len(out) < f.page; i-- {
		out = append(out, source.Post{
			ID:        fmt.Sprintf("%s-%06d", account.UserID, i),
			Author:    account.Handle,
			Text:      fmt.Sprintf("post %d from %s with enough text to be evaluated", i, account.Handle),
			CreatedAt: f.base.Add(time.Duration(i) * time.Second),
			Media:     []string{fmt.Sprintf("https://img.example/%s/%d.jpg", account.UserID, i)},
		})
	}
	return out, nil
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))

	ACCOUNTS := envInt("ACCOUNTS", 20)
	ROUNDS := envInt("ROUNDS", 30)
	NEW := envInt("NEW", 5)                 // new posts per account per round
	PAGE := envInt("PAGE", 20)              // posts returned per fetch
	CONCURRENCY := envInt("CONCURRENCY", 4) // accounts swept in parallel

	accountRepo := repository.NewAccountRepository(db)
	postRepo := repository.NewPostRepository(db)

	// clean tables for a reproducible run (ok for local bench)
	_ = db.Exec("DELETE FROM posts").Error
	_ = db.Exec("DELETE FROM accounts").Error

	accounts := make([]*model.Account, ACCOUNTS)
	for i := range accounts {
		accounts[i] = &model.Account{Name: fmt.Sprintf("bench %d", i), Handle: fmt.Sprintf("bench%d", i), UserID: strconv.Itoa(100000 + i)}
		if err := accountRepo.Create(context.Background(), accounts[i]); err != nil {
			panic(err)
		}
	}

	src := &feed{page: PAGE, heads: map[string]int{}, base: time.Now().UTC()}
	// auto mode off: every new post is evaluated but never generated
	auto := service.NewAutoPublisher(postRepo, nil, nil)
	sweeper := service.NewSweeper(accountRepo, postRepo, src, auto, CONCURRENCY)

	durations := make([]time.Duration, 0, ROUNDS)
	var inserted, duplicates, failures int
	for r := 0; r < ROUNDS; r++ {
		src.advance(accounts, NEW)
		res := sweeper.Run(context.Background(), service.RunOptions{BotEnabled: true, Settings: service.DefaultSettings()})
		durations = append(durations, res.Duration)
		inserted += res.Inserted
		duplicates += res.Duplicates
		failures += res.Failures
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	fmt.Printf("ACCOUNTS=%d ROUNDS=%d NEW=%d PAGE=%d CONCURRENCY=%d driver=%s\n", ACCOUNTS, ROUNDS, NEW, PAGE, CONCURRENCY, cfg.Database.Driver)
	fmt.Printf("Sweep latency: avg=%v p95=%v p99=%v\n", sum/time.Duration(len(durations)), pct(durations, 0.95), pct(durations, 0.99))
	fmt.Printf("Inserted=%d (want %d) duplicates=%d failures=%d\n", inserted, ACCOUNTS*ROUNDS*NEW, duplicates, failures)
}
