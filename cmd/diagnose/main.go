// Command diagnose probes every external service the bot depends on and
// exits non-zero when any of them is unreachable.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"tg-xpost-bot/internal/adapters/discovery"
	"tg-xpost-bot/internal/adapters/research"
	"tg-xpost-bot/internal/infra/config"
	"tg-xpost-bot/internal/infra/log"
	"tg-xpost-bot/internal/infra/ollama"
)

func main() {
	// lenient load: missing credentials are findings, not startup failures
	cfg := config.LoadLenient()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	failed := false
	report := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Printf("FAIL  %-12s %v\n", name, err)
			return
		}
		fmt.Printf("OK    %s\n", name)
	}

	generator := ollama.NewClient(cfg.Ollama.Host, cfg.Ollama.Model, cfg.Ollama.Timeout)
	if generator.Health(ctx) {
		report("ollama", nil)
	} else {
		report("ollama", fmt.Errorf("no response from %s", cfg.Ollama.Host))
	}

	reddit := discovery.NewReddit(logger, cfg.Reddit.BaseURL, cfg.Reddit.UserAgent)
	_, err := reddit.Fetch(ctx, "programming", 1)
	report("reddit", err)

	nitter := discovery.NewNitter(logger, cfg.Nitter.BaseURL)
	_, err = nitter.Fetch(ctx, "#golang", 1)
	report("nitter", err)

	ddg := research.NewDuckDuckGo(logger, cfg.Search.BaseURL)
	_, err = ddg.Search(ctx, "golang", 1)
	report("duckduckgo", err)

	if cfg.Telegram.Token == "" {
		report("telegram", errors.New("TG_BOT_TOKEN is empty"))
	} else {
		report("telegram", nil)
	}
	if cfg.Telegram.OwnerID == 0 {
		report("owner", errors.New("TG_OWNER_ID is empty"))
	} else {
		report("owner", nil)
	}

	if cfg.X.AccessToken == "" {
		report("x", errors.New("X_ACCESS_TOKEN is empty"))
	} else {
		// Token presence only. A write probe would publish a real post.
		report("x", nil)
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("All services reachable.")
}
