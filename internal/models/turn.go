package models

import (
	"strings"
	"time"
)

// MediaKind classifies an attachment by its content-type prefix
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaAudio MediaKind = "audio"
	MediaOther MediaKind = "other"
)

// Media is one attachment reference carried by an inbound message
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

// Kind returns the media classification for the content type
func (m Media) Kind() MediaKind {
	ct := strings.ToLower(strings.TrimSpace(m.ContentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaImage
	case strings.HasPrefix(ct, "audio/"):
		return MediaAudio
	default:
		return MediaOther
	}
}

// Turn is one inbound event. It is built per request and consumed once.
type Turn struct {
	ID         string    `json:"id"`
	MessageSID string    `json:"messageSid"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Body       string    `json:"body"`
	Media      []Media   `json:"media,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// ImageURLs returns image attachment URLs in arrival order
func (t *Turn) ImageURLs() []string {
	return t.mediaURLs(MediaImage)
}

// AudioURLs returns audio attachment URLs in arrival order
func (t *Turn) AudioURLs() []string {
	return t.mediaURLs(MediaAudio)
}

func (t *Turn) mediaURLs(kind MediaKind) []string {
	urls := []string{}
	for _, m := range t.Media {
		if m.Kind() == kind {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

// Reply is the text returned to the sender. Empty means no message.
type Reply struct {
	Text string `json:"text"`
}
