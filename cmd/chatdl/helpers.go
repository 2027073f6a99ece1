package main

import (
	"net/http"
	"time"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/chat"
	"github.com/dgnsrekt/ytchat-downloader/internal/config"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

// pageClientOptions builds the client used for pages and chat requests.
func pageClientOptions(cfg *config.Config, jar http.CookieJar) api.Options {
	return api.Options{
		BaseURL:        cfg.YouTube.BaseURL,
		AcceptLanguage: cfg.YouTube.AcceptLanguage,
		UserAgent:      cfg.YouTube.UserAgent,
		Headers:        cfg.YouTube.Headers,
		Jar:            jar,
		RatePerSec:     cfg.YouTube.RatePerSecond,
		Timeout:        time.Duration(cfg.YouTube.TimeoutSec) * time.Second,
		RetryDelay:     time.Duration(cfg.YouTube.RetryDelay) * time.Second,
		RetryCount:     cfg.YouTube.RetryCount,
	}
}

// assetClientOptions builds the client used for image downloads. Assets live
// on CDN hosts, so no cookies are sent.
func assetClientOptions(cfg *config.Config) api.Options {
	opts := pageClientOptions(cfg, nil)
	opts.RatePerSec = cfg.Assets.RatePerSecond
	opts.Timeout = time.Duration(cfg.Assets.TimeoutSec) * time.Second
	return opts
}

func engineOptions(cfg *config.Config) chat.Options {
	return chat.Options{
		ReplayInterval: cfg.ReplayInterval(),
		BurstInterval:  cfg.BurstInterval(),
		MaxBursts:      cfg.Chat.MaxBursts,
		AssetWorkers:   cfg.Assets.Workers,
	}
}

func modeOf(page *youtube.Page) string {
	if page.IsLive() {
		return "live"
	}
	return "replay"
}
