package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/archive"
	"github.com/dgnsrekt/ytchat-downloader/internal/assets"
	"github.com/dgnsrekt/ytchat-downloader/internal/chat"
	"github.com/dgnsrekt/ytchat-downloader/internal/cookies"
	"github.com/dgnsrekt/ytchat-downloader/internal/notify"
	"github.com/dgnsrekt/ytchat-downloader/internal/relay"
	"github.com/dgnsrekt/ytchat-downloader/internal/staging"
	"github.com/dgnsrekt/ytchat-downloader/internal/store"
	"github.com/dgnsrekt/ytchat-downloader/internal/telemetry"
)

const notifyTimeout = 15 * time.Second

func downloadCmd() *cobra.Command {
	var (
		output      string
		withAssets  bool
		compress    bool
		listen      string
		postgresDSN string
	)

	cmd := &cobra.Command{
		Use:   "download URL|VIDEO_ID",
		Short: "Download the chat of a live stream or a finished broadcast",
		Long: `Download the chat of a YouTube live stream or the replay chat of a
finished broadcast.

Every action is appended to chat.jsonl and its readable form to chat.txt
inside the output directory. Live streams are followed until the chat ends
or the command is interrupted.

Examples:
  # Download a replay into the default directory
  ytchat-dl download https://www.youtube.com/watch?v=dQw4w9WgXcQ

  # Follow a live stream, keep emoji and avatars, and relay it over WebSocket
  ytchat-dl download --with-assets --listen :8080 dQw4w9WgXcQ

  # Compressed output into a fixed directory
  ytchat-dl download --compress -o chats/stream dQw4w9WgXcQ`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Flags override config
			if cmd.Flags().Changed("with-assets") {
				cfg.Output.WithAssets = withAssets
			}
			if cmd.Flags().Changed("compress") {
				cfg.Output.Compress = compress
			}
			if cmd.Flags().Changed("listen") {
				cfg.Relay.Listen = listen
			}
			if cmd.Flags().Changed("postgres-dsn") {
				cfg.Store.PostgresDSN = postgresDSN
			}

			return runDownload(ctx, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default from output.pattern)")
	cmd.Flags().BoolVarP(&withAssets, "with-assets", "a", false, "download emoji, badges and author photos")
	cmd.Flags().BoolVar(&compress, "compress", false, "write chat.jsonl.zst instead of chat.jsonl")
	cmd.Flags().StringVar(&listen, "listen", "", "serve a WebSocket relay and /metrics on this address")
	cmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "also store chat items in Postgres")

	return cmd
}

func runDownload(ctx context.Context, target, output string) error {
	telemetry.Init()

	notifier := notify.New(&cfg.Notify, logger)

	var jar *cookies.Jar
	if cfg.YouTube.CookieFile != "" {
		var err error
		jar, err = cookies.Load(cfg.YouTube.CookieFile, cfg.YouTube.ForceCookies, logger)
		if err != nil {
			return err
		}
	}

	opts := pageClientOptions(cfg, nil)
	if jar != nil {
		opts.Jar = jar
	}
	client := api.NewClient(opts, logger)

	page, err := client.FetchPage(ctx, target)
	if err != nil {
		return fmt.Errorf("fetching video page: %w", err)
	}
	if !page.IsLive() && !page.IsArchive() {
		return fmt.Errorf("%s is neither live nor a finished live stream", page.VideoID())
	}

	dir := output
	if dir == "" {
		dir = archive.OutputDir(cfg.Output.Pattern, page, time.Now())
	}
	mode := modeOf(page)
	logger.Info("downloading chat",
		zap.String("video_id", page.VideoID()),
		zap.String("title", page.Title()),
		zap.String("mode", mode),
		zap.String("dir", dir),
	)

	writer, err := archive.NewWriter(dir, page, archive.WriterOptions{Compress: cfg.Output.Compress, Mode: mode}, logger)
	if err != nil {
		return err
	}
	sinks := chat.MultiSink{writer}

	engineOpts := engineOptions(cfg)
	if cfg.Output.WithAssets {
		engineOpts.AssetDir = writer.AssetDir()
		engineOpts.Downloader = assets.NewFileDownloader(api.NewClient(assetClientOptions(cfg), logger), cfg.Assets.RatePerSecond, logger)
	}

	if cfg.Relay.Listen != "" {
		hub := relay.NewHub(logger)
		addr, err := relay.NewServer(cfg.Relay.Listen, hub, engineOpts.AssetDir, logger).Start(ctx)
		if err != nil {
			_ = writer.Close()
			return fmt.Errorf("starting relay: %w", err)
		}
		logger.Info("relay listening", zap.String("addr", addr))
		sinks = append(sinks, hub)
	}

	if cfg.Store.PostgresDSN != "" {
		pg, err := store.Open(ctx, cfg.Store.PostgresDSN, page.VideoID(), logger)
		if err != nil {
			_ = writer.Close()
			return err
		}
		defer pg.Close()
		sinks = append(sinks, pg)
	}

	if term.IsTerminal(int(os.Stderr.Fd())) && !verbose {
		width, _, err := term.GetSize(int(os.Stderr.Fd()))
		if err != nil {
			width = 80
		}
		sinks = append(sinks, newProgressLine(os.Stderr, width))
	}

	engine := chat.New(page, client, sinks, engineOpts, logger)
	runErr := engine.Start(ctx, page)
	if errors.Is(runErr, context.Canceled) {
		logger.Info("interrupted, keeping what was downloaded")
		runErr = nil
	}

	if cfg.Output.WithAssets {
		drainCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Assets.DrainTimeoutSec)*time.Second)
		if err := engine.WaitAssets(drainCtx); err != nil {
			logger.Warn("asset downloads still running, giving up", zap.Error(err))
		}
		cancel()
		stage := staging.NewManager(engineOpts.AssetDir)
		if err := stage.Cleanup(); err != nil {
			logger.Warn("failed to cleanup staging", zap.String("dir", stage.StagingRoot()), zap.Error(err))
		}
	}

	closeErr := writer.Close()

	if jar != nil && cfg.YouTube.SaveCookies {
		if err := jar.Save(); err != nil {
			logger.Warn("failed to save cookies", zap.Error(err))
		}
	}

	summary := writer.Summary()
	stats := engine.Stats()
	logger.Info("download complete",
		zap.String("dir", dir),
		zap.Int("polls", stats.Polls),
		zap.Int("batches", summary.Batches),
		zap.Int("actions", summary.Actions),
		zap.Int("assets_ok", summary.AssetsOK),
		zap.Int("assets_failed", summary.AssetsFailed),
		zap.Int("assets_deduplicated", stats.Assets.Deduplicated),
		zap.Duration("duration", summary.Duration()),
	)

	finalErr := errors.Join(runErr, closeErr)

	notifyCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if finalErr != nil {
		_ = notifier.SendFailure(notifyCtx, summary, finalErr)
	} else {
		_ = notifier.SendSuccess(notifyCtx, summary)
	}

	return finalErr
}
