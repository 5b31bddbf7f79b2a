package tmdb

import (
	"context"
	"encoding/json"

	"github.com/flemzord/cinechat/internal/content"
	"github.com/flemzord/cinechat/internal/tool"
)

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type detailsArgs struct {
	MediaType string `json:"media_type"`
	ID        int64  `json:"id"`
}

type trendingArgs struct {
	MediaType  string `json:"media_type"`
	TimeWindow string `json:"time_window"`
	Limit      int    `json:"limit"`
}

type kindLimitArgs struct {
	MediaType string `json:"media_type"`
	Limit     int    `json:"limit"`
}

type limitArgs struct {
	Limit int `json:"limit"`
}

type relatedArgs struct {
	MediaType string `json:"media_type"`
	ID        int64  `json:"id"`
	Limit     int    `json:"limit"`
}

type discoverArgs struct {
	MediaType string   `json:"media_type"`
	GenreIDs  string   `json:"genre_ids"`
	Year      int      `json:"year"`
	MinRating *float64 `json:"min_rating"`
	MaxRating *float64 `json:"max_rating"`
	SortBy    string   `json:"sort_by"`
	Limit     int      `json:"limit"`
}

type findArgs struct {
	ExternalID     string `json:"external_id"`
	ExternalSource string `json:"external_source"`
}

// Tools returns the TMDB tool catalogue backed by c.
func Tools(c *Client) []tool.Tool {
	return []tool.Tool{
		&tool.Func[searchArgs]{
			ToolName: "search_tmdb",
			Desc:     "Universal search across movies, TV shows and people. Returns results grouped by type.",
			Params:   searchSchema,
			Run: func(ctx context.Context, a searchArgs) (any, error) {
				return c.Search(ctx, a.Query, a.Limit)
			},
		},
		&tool.Func[detailsArgs]{
			ToolName: "get_media_details",
			Desc:     "Get full details for a movie, TV show or person: cast, crew, keywords, recommendations and external ids.",
			Params:   detailsSchema,
			Run: func(ctx context.Context, a detailsArgs) (any, error) {
				kind, err := parseKind(a.MediaType, content.KindMovie, content.KindMovie, content.KindTV, content.KindPerson)
				if err != nil {
					return nil, err
				}
				return c.Details(ctx, kind, a.ID)
			},
		},
		&tool.Func[trendingArgs]{
			ToolName: "get_trending_media",
			Desc:     "Get trending movies, TV shows or people for the day or the week.",
			Params:   trendingSchema,
			Run: func(ctx context.Context, a trendingArgs) (any, error) {
				var kind content.Kind
				if a.MediaType != "" && a.MediaType != "all" {
					var err error
					if kind, err = parseKind(a.MediaType, "", content.KindMovie, content.KindTV, content.KindPerson); err != nil {
						return nil, err
					}
				}
				window := a.TimeWindow
				switch window {
				case "":
					window = "week"
				case "day", "week":
				default:
					return nil, tool.InvalidArgs("time_window must be day or week")
				}
				return c.Trending(ctx, kind, window, a.Limit)
			},
		},
		&tool.Func[kindLimitArgs]{
			ToolName: "get_popular_media",
			Desc:     "Get the most popular movies, TV shows or people right now.",
			Params:   popularSchema,
			Run: func(ctx context.Context, a kindLimitArgs) (any, error) {
				kind, err := parseKind(a.MediaType, content.KindMovie, content.KindMovie, content.KindTV, content.KindPerson)
				if err != nil {
					return nil, err
				}
				return c.Popular(ctx, kind, a.Limit)
			},
		},
		&tool.Func[kindLimitArgs]{
			ToolName: "get_top_rated_media",
			Desc:     "Get the highest rated movies or TV shows of all time.",
			Params:   movieOrTVLimitSchema,
			Run: func(ctx context.Context, a kindLimitArgs) (any, error) {
				kind, err := parseKind(a.MediaType, content.KindMovie, content.KindMovie, content.KindTV)
				if err != nil {
					return nil, err
				}
				return c.TopRated(ctx, kind, a.Limit)
			},
		},
		&tool.Func[limitArgs]{
			ToolName: "get_upcoming_movies",
			Desc:     "Get upcoming movie releases.",
			Params:   limitSchema,
			Run: func(ctx context.Context, a limitArgs) (any, error) {
				return c.Upcoming(ctx, a.Limit)
			},
		},
		&tool.Func[limitArgs]{
			ToolName: "get_airing_today",
			Desc:     "Get TV shows with an episode airing today.",
			Params:   limitSchema,
			Run: func(ctx context.Context, a limitArgs) (any, error) {
				return c.AiringToday(ctx, a.Limit)
			},
		},
		&tool.Func[limitArgs]{
			ToolName: "get_on_the_air_tv",
			Desc:     "Get TV shows currently on the air.",
			Params:   limitSchema,
			Run: func(ctx context.Context, a limitArgs) (any, error) {
				return c.OnTheAir(ctx, a.Limit)
			},
		},
		&tool.Func[relatedArgs]{
			ToolName: "get_similar_media",
			Desc:     "Get movies or TV shows similar to a given item.",
			Params:   relatedSchema,
			Run: func(ctx context.Context, a relatedArgs) (any, error) {
				kind, err := parseKind(a.MediaType, content.KindMovie, content.KindMovie, content.KindTV)
				if err != nil {
					return nil, err
				}
				return c.Similar(ctx, kind, a.ID, a.Limit)
			},
		},
		&tool.Func[relatedArgs]{
			ToolName: "get_recommendations",
			Desc:     "Get movie or TV show recommendations based on a given item.",
			Params:   relatedSchema,
			Run: func(ctx context.Context, a relatedArgs) (any, error) {
				kind, err := parseKind(a.MediaType, content.KindMovie, content.KindMovie, content.KindTV)
				if err != nil {
					return nil, err
				}
				return c.Recommendations(ctx, kind, a.ID, a.Limit)
			},
		},
		&tool.Func[discoverArgs]{
			ToolName: "discover_with_filters",
			Desc:     "Discover movies or TV shows by genre ids, year, rating range and sort order.",
			Params:   discoverSchema,
			Run: func(ctx context.Context, a discoverArgs) (any, error) {
				kind, err := parseKind(a.MediaType, content.KindMovie, content.KindMovie, content.KindTV)
				if err != nil {
					return nil, err
				}
				if a.MinRating != nil && a.MaxRating != nil && *a.MinRating > *a.MaxRating {
					return nil, tool.InvalidArgs("min_rating exceeds max_rating")
				}
				return c.Discover(ctx, DiscoverQuery{
					Kind:      kind,
					GenreIDs:  a.GenreIDs,
					Year:      a.Year,
					MinRating: a.MinRating,
					MaxRating: a.MaxRating,
					SortBy:    a.SortBy,
					Limit:     a.Limit,
				})
			},
		},
		&tool.Func[findArgs]{
			ToolName: "find_by_external_id",
			Desc:     "Find movies, TV shows or people by an external id such as an IMDb id (tt0111161).",
			Params:   findSchema,
			Run: func(ctx context.Context, a findArgs) (any, error) {
				return c.Find(ctx, a.ExternalID, a.ExternalSource)
			},
		},
	}
}

// parseKind resolves s against the allowed kinds, using def when s is empty.
func parseKind(s string, def content.Kind, allowed ...content.Kind) (content.Kind, error) {
	if s == "" {
		return def, nil
	}
	for _, k := range allowed {
		if string(k) == s {
			return k, nil
		}
	}
	return "", tool.InvalidArgs("media_type %q must be one of %v", s, allowed)
}

var (
	searchSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Title or name to search for"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 10}
		},
		"required": ["query"]
	}`)

	detailsSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"media_type": {"type": "string", "enum": ["movie", "tv", "person"], "default": "movie"},
			"id": {"type": "integer", "description": "TMDB id"}
		},
		"required": ["media_type", "id"]
	}`)

	trendingSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"media_type": {"type": "string", "enum": ["all", "movie", "tv", "person"], "default": "all"},
			"time_window": {"type": "string", "enum": ["day", "week"], "default": "week"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 10}
		}
	}`)

	popularSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"media_type": {"type": "string", "enum": ["movie", "tv", "person"], "default": "movie"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 10}
		}
	}`)

	movieOrTVLimitSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"media_type": {"type": "string", "enum": ["movie", "tv"], "default": "movie"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 10}
		}
	}`)

	limitSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 10}
		}
	}`)

	relatedSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"media_type": {"type": "string", "enum": ["movie", "tv"], "default": "movie"},
			"id": {"type": "integer", "description": "TMDB id of the base item"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 15}
		},
		"required": ["id"]
	}`)

	discoverSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"media_type": {"type": "string", "enum": ["movie", "tv"], "default": "movie"},
			"genre_ids": {"type": "string", "description": "Comma separated TMDB genre ids"},
			"year": {"type": "integer", "description": "Release year (movies) or first air year (tv)"},
			"min_rating": {"type": "number", "minimum": 0, "maximum": 10},
			"max_rating": {"type": "number", "minimum": 0, "maximum": 10},
			"sort_by": {"type": "string", "default": "popularity.desc"},
			"limit": {"type": "integer", "minimum": 1, "maximum": 20, "default": 10}
		}
	}`)

	findSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"external_id": {"type": "string", "description": "e.g. tt0111161"},
			"external_source": {"type": "string", "enum": ["imdb_id", "tvdb_id", "freebase_mid", "freebase_id", "tvrage_id", "facebook_id", "instagram_id", "twitter_id", "wikidata_id", "tiktok_id", "youtube_id"], "default": "imdb_id"}
		},
		"required": ["external_id"]
	}`)
)
