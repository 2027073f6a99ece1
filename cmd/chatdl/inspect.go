package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/ytchat-downloader/internal/api"
	"github.com/dgnsrekt/ytchat-downloader/internal/youtube"
)

type pageInfo struct {
	VideoID       string             `json:"video_id"`
	Title         string             `json:"title"`
	Author        string             `json:"author,omitempty"`
	ChannelID     string             `json:"channel_id,omitempty"`
	Live          bool               `json:"live"`
	Archive       bool               `json:"archive"`
	ChatRoom      bool               `json:"chat_room"`
	Continuations []continuationInfo `json:"continuations,omitempty"`
}

type continuationInfo struct {
	Kind         youtube.Kind `json:"kind"`
	Continuation string       `json:"continuation"`
}

func inspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect URL|VIDEO_ID",
		Short: "Show what a video page says about its chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(pageClientOptions(cfg, nil), logger)
			page, err := client.FetchPage(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching video page: %w", err)
			}
			return writePageInfo(os.Stdout, describePage(page), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func describePage(page *youtube.Page) pageInfo {
	d := page.PlayerResponse.VideoDetails
	info := pageInfo{
		VideoID:   d.VideoID,
		Title:     d.Title,
		Author:    d.Author,
		ChannelID: d.ChannelID,
		Live:      page.IsLive(),
		Archive:   page.IsArchive(),
	}
	list, ok := page.ChatContinuations()
	info.ChatRoom = ok
	for _, c := range list {
		kind := c.Kind()
		if kind == "" {
			continue
		}
		t, err := youtube.Select([]youtube.Continuation{c}, kind)
		if err != nil {
			continue
		}
		info.Continuations = append(info.Continuations, continuationInfo{Kind: kind, Continuation: t.Continuation})
	}
	return info
}

func writePageInfo(w io.Writer, info pageInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(w, "Video:   %s\n", info.VideoID)
	fmt.Fprintf(w, "Title:   %s\n", info.Title)
	if info.Author != "" {
		fmt.Fprintf(w, "Channel: %s (%s)\n", info.Author, info.ChannelID)
	}
	status := "not a live stream"
	switch {
	case info.Live:
		status = "live"
	case info.Archive:
		status = "finished live stream"
	}
	fmt.Fprintf(w, "Status:  %s\n", status)
	if !info.ChatRoom {
		fmt.Fprintln(w, "Chat:    none")
		return nil
	}
	for _, c := range info.Continuations {
		fmt.Fprintf(w, "Chat:    %s %s\n", c.Kind, c.Continuation)
	}
	return nil
}
