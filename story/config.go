package story

import (
	"fmt"
	"strings"
)

// Workflow kinds.
const (
	KindPoll        = "poll"
	KindOffice      = "office"
	KindSubscribe   = "subscribe"
	KindUnsubscribe = "unsubscribe"
)

// Config holds the story presentation settings.
type Config struct {
	// PageBaseURL hosts "<office>/weatherstory" pages.
	PageBaseURL string `json:"pageBaseURL" yaml:"pageBaseURL" env:"PAGE_BASE_URL"`
	AvatarURL   string `json:"avatarURL" yaml:"avatarURL" env:"AVATAR_URL"`
	Color       int    `json:"color" yaml:"color"`
}

// DefaultConfig returns the weather.gov configuration.
func DefaultConfig() Config {
	return Config{
		PageBaseURL: "https://www.weather.gov",
		AvatarURL:   "https://upload.wikimedia.org/wikipedia/commons/thumb/7/79/NOAA_logo.svg/240px-NOAA_logo.svg.png",
		Color:       0x135897,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.PageBaseURL == "" {
		return fmt.Errorf("story pageBaseURL was empty")
	}
	return nil
}

// PageURL returns the story page of office.
func (c *Config) PageURL(office string) string {
	return strings.TrimRight(c.PageBaseURL, "/") + "/" + strings.ToLower(office) + "/weatherstory"
}

// PollParams are the parameters of a poll instance.
type PollParams struct {
	Dev bool `json:"dev"`
}

// OfficeParams are the parameters of an office instance.
type OfficeParams struct {
	Dev      bool   `json:"dev"`
	Office   string `json:"office"`
	OfficeID int    `json:"officeId"`
}

// SubscribeParams are the parameters of a subscribe instance.
type SubscribeParams struct {
	Office      string `json:"office"`
	Guild       string `json:"guild"`
	Channel     string `json:"channel"`
	Destination string `json:"destination"`
	Dev         bool   `json:"dev"`
}

// UnsubscribeParams are the parameters of an unsubscribe instance.  An
// empty Office removes the channel from every office.
type UnsubscribeParams struct {
	Channel string `json:"channel"`
	Office  string `json:"office,omitempty"`
}
