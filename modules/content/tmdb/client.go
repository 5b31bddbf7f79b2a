package tmdb

import (
	"cmp"
	"context"
	"errors"
	"net/url"
	"slices"
	"strconv"

	"github.com/flemzord/cinechat/internal/content"
	"github.com/flemzord/cinechat/internal/tool"
)

const (
	defaultLimit        = 10
	defaultRelatedLimit = 15
	// maxLimit is one TMDB result page.
	maxLimit = 20

	castLimit            = 10
	keywordLimit         = 10
	recommendationsLimit = 5
	knownForLimit        = 5
)

// Client exposes the TMDB operations the tools are built on.
type Client struct {
	api *content.Client
}

// NewClient wraps a content client rooted at the TMDB API.
func NewClient(api *content.Client) *Client {
	return &Client{api: api}
}

// Search runs a multi search and groups the results by kind. An upstream
// 404 yields an empty result.
func (c *Client) Search(ctx context.Context, query string, limit int) (SearchResult, error) {
	if query == "" {
		return SearchResult{}, tool.InvalidArgs("query is required")
	}
	limit = clampLimit(limit, defaultLimit)
	out := SearchResult{Query: query, Movies: []content.Item{}, TVShows: []content.Item{}, People: []content.Item{}}

	var resp pagedResponse
	err := c.api.Get(ctx, "/search/multi", url.Values{
		"query":         {query},
		"page":          {"1"},
		"include_adult": {"false"},
	}, &resp)
	if errors.Is(err, content.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return SearchResult{}, err
	}

	out.TotalResults = len(resp.Results)
	for _, it := range content.NormalizeAll(resp.Results, "", 0) {
		switch it.Type {
		case content.KindMovie:
			if len(out.Movies) < limit {
				out.Movies = append(out.Movies, it)
			}
		case content.KindTV:
			if len(out.TVShows) < limit {
				out.TVShows = append(out.TVShows, it)
			}
		case content.KindPerson:
			if len(out.People) < limit {
				out.People = append(out.People, it)
			}
		}
	}
	return out, nil
}

// Details fetches one movie, show or person with credits, keywords and
// recommendations appended. A 404 is returned as *content.NotFoundError.
func (c *Client) Details(ctx context.Context, kind content.Kind, id int64) (Details, error) {
	if id <= 0 {
		return Details{}, tool.InvalidArgs("id must be positive")
	}
	appends := "credits,recommendations,external_ids,keywords,images"
	if kind == content.KindPerson {
		appends = "combined_credits,external_ids,images"
	}

	var raw detailsResponse
	path := "/" + string(kind) + "/" + strconv.FormatInt(id, 10)
	if err := c.api.Get(ctx, path, url.Values{"append_to_response": {appends}}, &raw); err != nil {
		return Details{}, err
	}

	item, _ := content.Normalize(raw.RawItem, kind)
	item.Type = kind
	d := Details{
		Item:      item,
		VoteCount: raw.VoteCount,
		Status:    raw.Status,
		Genres:    names(raw.Genres, 0),
	}
	if raw.Credits != nil {
		for _, m := range raw.Credits.Cast {
			if len(d.Cast) == castLimit {
				break
			}
			d.Cast = append(d.Cast, CastMember{Name: m.Name, Character: m.Character})
		}
	}
	if raw.Keywords != nil {
		d.Keywords = names(append(raw.Keywords.Keywords, raw.Keywords.Results...), keywordLimit)
	}
	if raw.Recommendations != nil {
		d.Recommendations = content.NormalizeAll(raw.Recommendations.Results, kind, recommendationsLimit)
	}

	switch kind {
	case content.KindMovie:
		d.Runtime = raw.Runtime
		d.Tagline = raw.Tagline
		d.Budget = raw.Budget
		d.Revenue = raw.Revenue
		d.IMDbID = raw.IMDbID
		if d.IMDbID == "" && raw.ExternalIDs != nil {
			d.IMDbID = raw.ExternalIDs.IMDbID
		}
		if raw.Credits != nil {
			for _, m := range raw.Credits.Crew {
				if m.Job == "Director" {
					d.Director = m.Name
					break
				}
			}
		}
	case content.KindTV:
		d.Seasons = raw.NumberOfSeasons
		d.Episodes = raw.NumberOfEpisodes
		d.Networks = names(raw.Networks, 0)
		d.Creators = names(raw.CreatedBy, 0)
		d.LastAirDate = raw.LastAirDate
		if raw.NextEpisode != nil {
			d.NextAirDate = raw.NextEpisode.AirDate
		}
	case content.KindPerson:
		d.Biography = content.Truncate(raw.Biography, content.BiographyLimit)
		d.Birthday = raw.Birthday
		d.Deathday = raw.Deathday
		d.PlaceOfBirth = raw.PlaceOfBirth
		if raw.CombinedCredits != nil {
			credits := slices.Clone(raw.CombinedCredits.Cast)
			slices.SortStableFunc(credits, func(a, b content.RawItem) int {
				return cmp.Compare(b.Popularity, a.Popularity)
			})
			d.KnownFor = content.NormalizeAll(credits, "", knownForLimit)
		}
	}
	return d, nil
}

// Trending lists trending items. kind may be empty for all kinds.
func (c *Client) Trending(ctx context.Context, kind content.Kind, window string, limit int) (ListResult, error) {
	scope := string(kind)
	if scope == "" {
		scope = "all"
	}
	res, err := c.list(ctx, "/trending/"+scope+"/"+window, nil, kind, clampLimit(limit, defaultLimit))
	res.MediaType = scope
	res.TimeWindow = window
	return res, err
}

// Popular lists popular movies, shows or people.
func (c *Client) Popular(ctx context.Context, kind content.Kind, limit int) (ListResult, error) {
	res, err := c.list(ctx, "/"+string(kind)+"/popular", nil, kind, clampLimit(limit, defaultLimit))
	res.MediaType, res.Category = string(kind), "popular"
	return res, err
}

// TopRated lists the highest rated movies or shows.
func (c *Client) TopRated(ctx context.Context, kind content.Kind, limit int) (ListResult, error) {
	res, err := c.list(ctx, "/"+string(kind)+"/top_rated", nil, kind, clampLimit(limit, defaultLimit))
	res.MediaType, res.Category = string(kind), "top_rated"
	return res, err
}

// Upcoming lists movies about to be released.
func (c *Client) Upcoming(ctx context.Context, limit int) (ListResult, error) {
	res, err := c.list(ctx, "/movie/upcoming", nil, content.KindMovie, clampLimit(limit, defaultLimit))
	res.MediaType, res.Category = string(content.KindMovie), "upcoming"
	return res, err
}

// AiringToday lists shows with an episode airing today.
func (c *Client) AiringToday(ctx context.Context, limit int) (ListResult, error) {
	res, err := c.list(ctx, "/tv/airing_today", nil, content.KindTV, clampLimit(limit, defaultLimit))
	res.MediaType, res.Category = string(content.KindTV), "airing_today"
	return res, err
}

// OnTheAir lists shows airing in the next seven days.
func (c *Client) OnTheAir(ctx context.Context, limit int) (ListResult, error) {
	res, err := c.list(ctx, "/tv/on_the_air", nil, content.KindTV, clampLimit(limit, defaultLimit))
	res.MediaType, res.Category = string(content.KindTV), "on_the_air"
	return res, err
}

// Similar lists items similar to id.
func (c *Client) Similar(ctx context.Context, kind content.Kind, id int64, limit int) (ListResult, error) {
	return c.related(ctx, kind, id, "similar", limit)
}

// Recommendations lists items TMDB recommends for id.
func (c *Client) Recommendations(ctx context.Context, kind content.Kind, id int64, limit int) (ListResult, error) {
	return c.related(ctx, kind, id, "recommendations", limit)
}

func (c *Client) related(ctx context.Context, kind content.Kind, id int64, category string, limit int) (ListResult, error) {
	if id <= 0 {
		return ListResult{}, tool.InvalidArgs("id must be positive")
	}
	path := "/" + string(kind) + "/" + strconv.FormatInt(id, 10) + "/" + category
	res, err := c.list(ctx, path, nil, kind, clampLimit(limit, defaultRelatedLimit))
	res.MediaType, res.Category, res.BaseID = string(kind), category, id
	return res, err
}

// DiscoverQuery holds the discover filters.
type DiscoverQuery struct {
	Kind      content.Kind
	GenreIDs  string
	Year      int
	MinRating *float64
	MaxRating *float64
	SortBy    string
	Limit     int
}

// Discover lists movies or shows matching the filters.
func (c *Client) Discover(ctx context.Context, q DiscoverQuery) (ListResult, error) {
	if q.SortBy == "" {
		q.SortBy = "popularity.desc"
	}
	params := url.Values{
		"sort_by":       {q.SortBy},
		"include_adult": {"false"},
	}
	if q.GenreIDs != "" {
		params.Set("with_genres", q.GenreIDs)
	}
	if q.Year > 0 {
		if q.Kind == content.KindMovie {
			params.Set("primary_release_year", strconv.Itoa(q.Year))
		} else {
			params.Set("first_air_date_year", strconv.Itoa(q.Year))
		}
	}
	if q.MinRating != nil {
		params.Set("vote_average.gte", strconv.FormatFloat(*q.MinRating, 'f', -1, 64))
	}
	if q.MaxRating != nil {
		params.Set("vote_average.lte", strconv.FormatFloat(*q.MaxRating, 'f', -1, 64))
	}

	res, err := c.list(ctx, "/discover/"+string(q.Kind), params, q.Kind, clampLimit(q.Limit, defaultLimit))
	res.MediaType = string(q.Kind)
	res.Filters = &Filters{
		GenreIDs:  q.GenreIDs,
		Year:      q.Year,
		MinRating: q.MinRating,
		MaxRating: q.MaxRating,
		SortBy:    q.SortBy,
	}
	return res, err
}

// Find looks an item up by an external id such as an IMDb id. An upstream
// 404 yields an empty result.
func (c *Client) Find(ctx context.Context, externalID, source string) (SearchResult, error) {
	if externalID == "" {
		return SearchResult{}, tool.InvalidArgs("external_id is required")
	}
	if source == "" {
		source = "imdb_id"
	}
	out := SearchResult{
		ExternalID:     externalID,
		ExternalSource: source,
		Movies:         []content.Item{},
		TVShows:        []content.Item{},
		People:         []content.Item{},
	}

	var resp findResponse
	err := c.api.Get(ctx, "/find/"+url.PathEscape(externalID), url.Values{"external_source": {source}}, &resp)
	if errors.Is(err, content.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return SearchResult{}, err
	}

	out.Movies = content.NormalizeAll(resp.MovieResults, content.KindMovie, 0)
	out.TVShows = content.NormalizeAll(resp.TVResults, content.KindTV, 0)
	out.People = content.NormalizeAll(resp.PersonResults, content.KindPerson, 0)
	out.TotalResults = len(out.Movies) + len(out.TVShows) + len(out.People)
	return out, nil
}

// Ping checks TMDB reachability and the API key with a known movie.
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Ping(ctx, "/movie/550")
}

func (c *Client) list(ctx context.Context, path string, params url.Values, fallback content.Kind, limit int) (ListResult, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("page", "1")

	var resp pagedResponse
	if err := c.api.Get(ctx, path, params, &resp); err != nil {
		return ListResult{Items: []content.Item{}}, err
	}
	items := content.NormalizeAll(resp.Results, fallback, limit)
	return ListResult{TotalResults: resp.TotalResults, Items: items}, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}

func names(ns []named, limit int) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		if limit > 0 && len(out) == limit {
			break
		}
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}
