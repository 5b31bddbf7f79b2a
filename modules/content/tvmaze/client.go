package tvmaze

import (
	"context"
	"net/url"
	"strings"

	"github.com/flemzord/cinechat/internal/content"
	"github.com/flemzord/cinechat/internal/tool"
)

// Episode is one aired or scheduled episode.
type Episode struct {
	Name    string `json:"name,omitempty"`
	Season  int    `json:"season,omitempty"`
	Number  int    `json:"number,omitempty"`
	AirDate string `json:"airdate,omitempty"`
	AirTime string `json:"airtime,omitempty"`
}

// Schedule is the airing status of a show.
type Schedule struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Status          string   `json:"status"`
	Premiered       string   `json:"premiered,omitempty"`
	Network         string   `json:"network,omitempty"`
	Days            []string `json:"schedule_days,omitempty"`
	Time            string   `json:"schedule_time,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	NextEpisode     *Episode `json:"next_episode,omitempty"`
	PreviousEpisode *Episode `json:"previous_episode,omitempty"`
}

type showResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Premiered string `json:"premiered"`
	Summary   string `json:"summary"`
	Schedule  struct {
		Time string   `json:"time"`
		Days []string `json:"days"`
	} `json:"schedule"`
	Network *struct {
		Name string `json:"name"`
	} `json:"network"`
	WebChannel *struct {
		Name string `json:"name"`
	} `json:"webChannel"`
	Embedded struct {
		NextEpisode     *Episode `json:"nextepisode"`
		PreviousEpisode *Episode `json:"previousepisode"`
	} `json:"_embedded"`
}

// Client queries TVMaze.
type Client struct {
	api *content.Client
}

// NewClient wraps a content client rooted at the TVMaze API.
func NewClient(api *content.Client) *Client {
	return &Client{api: api}
}

// Schedule resolves showName to its best match and returns its airing
// status with the next and previous episodes. An unknown show is returned
// as *content.NotFoundError.
func (c *Client) Schedule(ctx context.Context, showName string) (Schedule, error) {
	showName = strings.TrimSpace(showName)
	if showName == "" {
		return Schedule{}, tool.InvalidArgs("show_name is required")
	}

	var raw showResponse
	err := c.api.Get(ctx, "/singlesearch/shows", url.Values{
		"q":       {showName},
		"embed[]": {"nextepisode", "previousepisode"},
	}, &raw)
	if err != nil {
		return Schedule{}, err
	}

	s := Schedule{
		ID:              raw.ID,
		Name:            raw.Name,
		Status:          raw.Status,
		Premiered:       raw.Premiered,
		Days:            raw.Schedule.Days,
		Time:            raw.Schedule.Time,
		Summary:         content.Truncate(stripTags(raw.Summary), content.OverviewLimit),
		NextEpisode:     raw.Embedded.NextEpisode,
		PreviousEpisode: raw.Embedded.PreviousEpisode,
	}
	switch {
	case raw.Network != nil:
		s.Network = raw.Network.Name
	case raw.WebChannel != nil:
		s.Network = raw.WebChannel.Name
	}
	return s, nil
}

// Ping checks TVMaze reachability.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Ping(ctx, "/shows/1")
}

// stripTags drops the HTML markup TVMaze uses in summaries.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
