// Package assets finds the images referenced by chat items and stores them
// on disk.
package assets

import "github.com/dgnsrekt/ytchat-downloader/internal/youtube"

// Extract returns every image URL referenced by the chat items in actions:
// author photos, emoji images and custom badge thumbnails. Replay wrappers are
// expanded. The result may contain duplicates.
func Extract(actions []youtube.Action) []string {
	var urls []string
	for _, a := range youtube.Flatten(actions) {
		if a.AddChatItem == nil {
			continue
		}
		r, _ := a.AddChatItem.Item.Renderer()
		if r == nil {
			continue
		}

		if r.AuthorPhoto != nil {
			urls = appendThumbnails(urls, *r.AuthorPhoto)
		}
		urls = appendEmoji(urls, r.Message)
		urls = appendEmoji(urls, r.HeaderSubtext)
		for _, b := range r.AuthorBadges {
			if b.Renderer != nil && b.Renderer.CustomThumbnail != nil {
				urls = appendThumbnails(urls, *b.Renderer.CustomThumbnail)
			}
		}
	}
	return urls
}

func appendEmoji(urls []string, runs *youtube.Runs) []string {
	if runs == nil {
		return urls
	}
	for _, run := range runs.Runs {
		if run.Emoji != nil {
			urls = appendThumbnails(urls, run.Emoji.Image)
		}
	}
	return urls
}

func appendThumbnails(urls []string, img youtube.Image) []string {
	for _, th := range img.Thumbnails {
		if th.URL != "" {
			urls = append(urls, th.URL)
		}
	}
	return urls
}
