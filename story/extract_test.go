package story

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/stepflow/model/fault"
)

func TestExtract(t *testing.T) {
	page, err := os.ReadFile("testdata/weatherstory.html")
	require.NoError(t, err)

	testCases := []struct {
		name    string
		page    string
		pageURL string
		expect  *Story
		kind    fault.Kind
	}{
		{
			name:    "first tab",
			page:    string(page),
			pageURL: "https://www.weather.gov/box/weatherstory",
			expect: &Story{
				Title:       "Soaking Rain Tonight",
				Description: "Rain arrives this evening.\nHeaviest totals south of the Pike.",
				ImageURL:    "https://www.weather.gov/images/box/wxstory/StormTotal.png",
			},
		},
		{
			name: "absolute image source",
			page: `<div class="c-tabs-nav__link"><span> Snow </span></div>
<div class="c-tab"><div><div><div><img src="https://cdn.example.com/a.png"></div><div>Line one<br>Line two</div></div></div></div>`,
			pageURL: "https://www.weather.gov/okx/weatherstory",
			expect:  &Story{Title: "Snow", Description: "Line one\nLine two", ImageURL: "https://cdn.example.com/a.png"},
		},
		{
			name:    "missing image",
			page:    `<div class="c-tabs-nav__link"><span>Snow</span></div><div class="c-tab"><div><div><div></div></div></div></div>`,
			pageURL: "https://www.weather.gov/okx/weatherstory",
			kind:    fault.KindMissingField,
		},
		{
			name:    "missing title",
			page:    `<html><body><p>maintenance</p></body></html>`,
			pageURL: "https://www.weather.gov/okx/weatherstory",
			kind:    fault.KindMissingField,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := Extract([]byte(tc.page), tc.pageURL)
			if tc.kind != "" {
				assert.Equal(t, tc.kind, fault.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expect, actual)
		})
	}
}
