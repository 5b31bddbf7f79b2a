package tmdb

import "github.com/flemzord/cinechat/internal/content"

// SearchResult groups a multi search by kind. FindResult shares the shape.
type SearchResult struct {
	Query          string         `json:"query,omitempty"`
	ExternalID     string         `json:"external_id,omitempty"`
	ExternalSource string         `json:"external_source,omitempty"`
	TotalResults   int            `json:"total_results"`
	Movies         []content.Item `json:"movies"`
	TVShows        []content.Item `json:"tv_shows"`
	People         []content.Item `json:"people"`
}

// ListResult is returned by every listing tool.
type ListResult struct {
	MediaType    string         `json:"media_type,omitempty"`
	Category     string         `json:"category,omitempty"`
	TimeWindow   string         `json:"time_window,omitempty"`
	BaseID       int64          `json:"base_id,omitempty"`
	Filters      *Filters       `json:"filters,omitempty"`
	TotalResults int            `json:"total_results"`
	Items        []content.Item `json:"items"`
}

// Filters echoes the discover parameters actually applied.
type Filters struct {
	GenreIDs  string   `json:"genre_ids,omitempty"`
	Year      int      `json:"year,omitempty"`
	MinRating *float64 `json:"min_rating,omitempty"`
	MaxRating *float64 `json:"max_rating,omitempty"`
	SortBy    string   `json:"sort_by"`
}

// CastMember is one billed performer.
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
}

// Details is the normalized item plus kind-specific fields. Only the
// fields of Type are populated.
type Details struct {
	content.Item

	VoteCount       int            `json:"vote_count,omitempty"`
	Status          string         `json:"status,omitempty"`
	Genres          []string       `json:"genres,omitempty"`
	Cast            []CastMember   `json:"cast,omitempty"`
	Keywords        []string       `json:"keywords,omitempty"`
	Recommendations []content.Item `json:"recommendations,omitempty"`

	// movie
	Runtime  int    `json:"runtime,omitempty"`
	Tagline  string `json:"tagline,omitempty"`
	Budget   int64  `json:"budget,omitempty"`
	Revenue  int64  `json:"revenue,omitempty"`
	Director string `json:"director,omitempty"`
	IMDbID   string `json:"imdb_id,omitempty"`

	// tv
	Seasons     int      `json:"number_of_seasons,omitempty"`
	Episodes    int      `json:"number_of_episodes,omitempty"`
	Networks    []string `json:"networks,omitempty"`
	Creators    []string `json:"creators,omitempty"`
	NextAirDate string   `json:"next_air_date,omitempty"`
	LastAirDate string   `json:"last_air_date,omitempty"`

	// person
	Biography    string         `json:"biography,omitempty"`
	Birthday     string         `json:"birthday,omitempty"`
	Deathday     string         `json:"deathday,omitempty"`
	PlaceOfBirth string         `json:"place_of_birth,omitempty"`
	KnownFor     []content.Item `json:"known_for,omitempty"`
}

// Upstream payloads.

type pagedResponse struct {
	Page         int               `json:"page"`
	TotalResults int               `json:"total_results"`
	Results      []content.RawItem `json:"results"`
}

type findResponse struct {
	MovieResults  []content.RawItem `json:"movie_results"`
	TVResults     []content.RawItem `json:"tv_results"`
	PersonResults []content.RawItem `json:"person_results"`
}

type named struct {
	Name string `json:"name"`
}

type detailsResponse struct {
	content.RawItem

	VoteCount int     `json:"vote_count"`
	Status    string  `json:"status"`
	Genres    []named `json:"genres"`

	Runtime int    `json:"runtime"`
	Tagline string `json:"tagline"`
	Budget  int64  `json:"budget"`
	Revenue int64  `json:"revenue"`
	IMDbID  string `json:"imdb_id"`

	NumberOfSeasons  int     `json:"number_of_seasons"`
	NumberOfEpisodes int     `json:"number_of_episodes"`
	Networks         []named `json:"networks"`
	CreatedBy        []named `json:"created_by"`
	NextEpisode      *struct {
		AirDate string `json:"air_date"`
	} `json:"next_episode_to_air"`
	LastAirDate string `json:"last_air_date"`

	Biography    string `json:"biography"`
	Birthday     string `json:"birthday"`
	Deathday     string `json:"deathday"`
	PlaceOfBirth string `json:"place_of_birth"`

	Credits *struct {
		Cast []struct {
			Name      string `json:"name"`
			Character string `json:"character"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	CombinedCredits *struct {
		Cast []content.RawItem `json:"cast"`
	} `json:"combined_credits"`
	Keywords *struct {
		// Movies use "keywords", shows use "results".
		Keywords []named `json:"keywords"`
		Results  []named `json:"results"`
	} `json:"keywords"`
	Recommendations *pagedResponse `json:"recommendations"`
	ExternalIDs     *struct {
		IMDbID string `json:"imdb_id"`
	} `json:"external_ids"`
}
