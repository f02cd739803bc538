package story

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Message is the webhook payload announcing a story.
type Message struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url"`
	Embeds    []Embed `json:"embeds"`
}

// Embed is the rich part of a Message.
type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Timestamp   string `json:"timestamp"`
	Color       int    `json:"color"`
	Image       Image  `json:"image"`
}

// Image references the cached story image.
type Image struct {
	URL string `json:"url"`
}

var upper = cases.Upper(language.Und)

// Username is the display name messages of office are posted under.
func Username(office string) string {
	return upper.String(office) + " Weather Story"
}

func (s *Service) message(office string, aStory *Story, modified, imageLocation string) *Message {
	return &Message{
		Username:  Username(office),
		AvatarURL: s.config.AvatarURL,
		Embeds: []Embed{{
			Title:       aStory.Title,
			Description: aStory.Description,
			URL:         s.config.PageURL(office),
			Timestamp:   modified,
			Color:       s.config.Color,
			Image:       Image{URL: imageLocation},
		}},
	}
}
