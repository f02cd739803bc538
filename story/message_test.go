package story

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Message(t *testing.T) {
	s := &Service{config: DefaultConfig()}
	message := s.message("box", &Story{
		Title:       "Soaking Rain Tonight",
		Description: "Rain arrives this evening.\nHeaviest totals south of the Pike.",
		ImageURL:    "https://www.weather.gov/images/box/wxstory/StormTotal.png",
	}, "2024-03-09T14:05:00Z", "https://images.example.com/wxstory/box/1709993100/StormTotal.png")

	data, err := json.MarshalIndent(message, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "message", append(data, '\n'))
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "BOX Weather Story", Username("box"))
	assert.Equal(t, "OKX Weather Story", Username("OKX"))
}

func TestWithVersion(t *testing.T) {
	location, err := withVersion("https://images.example.com/wxstory/box/1/a.png", mustTime(t, "2024-03-09T14:05:00Z"))
	require.NoError(t, err)
	assert.Equal(t, "https://images.example.com/wxstory/box/1/a.png?v=1709993100000", location)
}
