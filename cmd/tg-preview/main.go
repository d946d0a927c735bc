package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"gorm.io/gorm"

	"github.com/blockedby/tgdown/internal/config"
	"github.com/blockedby/tgdown/internal/logger"
	"github.com/blockedby/tgdown/internal/media"
	"github.com/blockedby/tgdown/internal/telegram"
)

// classTotals accumulates what a backlog run would see for one class.
type classTotals struct {
	count    int
	bytes    int64
	eligible bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 1 {
		cfg.Channel = os.Args[1]
	}
	if cfg.Channel == "" {
		fmt.Println("usage: tg-preview @channel_username")
		fmt.Println("example: tg-preview @nasa (or set CHANNEL)")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init("warn", ""); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *gorm.DB
	if cfg.TGSessionStr == "" {
		if db, err = telegram.OpenSessionStore(cfg); err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
	}

	manager := telegram.NewManager(cfg, db)
	if err := manager.Init(ctx); err != nil {
		fmt.Printf("error: %v (run tg-auth first)\n", err)
		os.Exit(1)
	}
	client := telegram.NewClient(manager, telegram.NewRateLimiter(cfg.RateLimitRPS, 1), 1)
	defer client.Close()

	ch, err := client.ResolveChannel(ctx, cfg.Channel)
	if err != nil {
		fmt.Printf("error resolving channel: %v\n", err)
		os.Exit(1)
	}

	policy, _ := media.ParsePolicy(cfg.DownloadFilter)
	filter := media.Filter{Policy: policy}

	fmt.Printf("channel: %s (id %d)\n", ch.Title, ch.ID)
	fmt.Printf("folder:  %s\n", filepath.Join(cfg.DownloadPath, media.FolderName(ch.Title)))
	fmt.Printf("filter:  %s\n\n", policy)
	fmt.Println("scanning history...")

	totals := map[media.Class]*classTotals{
		media.ClassPhoto: {},
		media.ClassVideo: {},
		media.ClassOther: {},
	}
	var scanned, unknownSize int

	err = client.IterateHistory(ctx, ch, telegram.HistoryAll, func(msg telegram.Message) error {
		scanned++
		class := media.Classify(msg.Media)
		t, ok := totals[class]
		if !ok {
			return nil
		}
		t.count++
		t.bytes += msg.Media.Size
		if filter.ShouldDownload(msg.Media) {
			t.eligible = true
		}
		if !msg.Media.SizeKnown {
			unknownSize++
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		fmt.Printf("error scanning history: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%-8s | %-10s | %-12s | %-8s\n", "class", "messages", "size", "download")
	fmt.Println(strings.Repeat("-", 48))

	var wantCount int
	var wantBytes int64
	for _, class := range []media.Class{media.ClassPhoto, media.ClassVideo, media.ClassOther} {
		t := totals[class]
		mark := "no"
		if t.count == 0 {
			mark = "-"
		}
		if t.eligible {
			mark = "yes"
			wantCount += t.count
			wantBytes += t.bytes
		}
		fmt.Printf("%-8s | %-10d | %-12s | %-8s\n", class, t.count, humanize.Bytes(uint64(t.bytes)), mark)
	}

	fmt.Printf("\nscanned %d messages; a backlog run would queue %d files (%s) before dedup\n",
		scanned, wantCount, humanize.Bytes(uint64(wantBytes)))
	if unknownSize > 0 {
		fmt.Printf("%d attachments have no declared size and would be skipped\n", unknownSize)
	}
}
