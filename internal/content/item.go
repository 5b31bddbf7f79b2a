package content

import "unicode/utf8"

// Kind tags a normalized item.
type Kind string

// Item kinds.
const (
	KindMovie  Kind = "movie"
	KindTV     Kind = "tv"
	KindPerson Kind = "person"
)

// ParseKind returns the kind named by s, or false if it is not one of
// movie, tv or person.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindMovie, KindTV, KindPerson:
		return k, true
	}
	return "", false
}

// Truncation budgets for long text fields.
const (
	OverviewLimit  = 200
	BiographyLimit = 500
)

// Item is the shape every upstream movie, show or person is normalized to.
// Title holds the movie title, the show name or the person name.
// ReleaseDate holds the release date or the first air date.
type Item struct {
	Type               Kind    `json:"type"`
	ID                 int64   `json:"id"`
	Title              string  `json:"title"`
	Overview           string  `json:"overview,omitempty"`
	ReleaseDate        string  `json:"release_date,omitempty"`
	VoteAverage        float64 `json:"vote_average,omitempty"`
	Popularity         float64 `json:"popularity,omitempty"`
	PosterPath         string  `json:"poster_path,omitempty"`
	KnownForDepartment string  `json:"known_for_department,omitempty"`
}

// RawItem is the union of fields TMDB returns across its list endpoints.
type RawItem struct {
	MediaType          string  `json:"media_type"`
	ID                 int64   `json:"id"`
	Title              string  `json:"title"`
	Name               string  `json:"name"`
	Overview           string  `json:"overview"`
	ReleaseDate        string  `json:"release_date"`
	FirstAirDate       string  `json:"first_air_date"`
	VoteAverage        float64 `json:"vote_average"`
	Popularity         float64 `json:"popularity"`
	PosterPath         string  `json:"poster_path"`
	ProfilePath        string  `json:"profile_path"`
	KnownForDepartment string  `json:"known_for_department"`
}

// Normalize converts a raw item. The item's own media_type wins over
// fallback; items that resolve to no known kind are rejected.
func Normalize(raw RawItem, fallback Kind) (Item, bool) {
	kind, ok := ParseKind(raw.MediaType)
	if !ok {
		kind, ok = fallback, fallback != ""
	}
	if !ok {
		return Item{}, false
	}

	it := Item{
		Type:       kind,
		ID:         raw.ID,
		Popularity: raw.Popularity,
	}
	switch kind {
	case KindMovie:
		it.Title = firstNonEmpty(raw.Title, raw.Name)
		it.Overview = Truncate(raw.Overview, OverviewLimit)
		it.ReleaseDate = raw.ReleaseDate
		it.VoteAverage = raw.VoteAverage
		it.PosterPath = raw.PosterPath
	case KindTV:
		it.Title = firstNonEmpty(raw.Name, raw.Title)
		it.Overview = Truncate(raw.Overview, OverviewLimit)
		it.ReleaseDate = raw.FirstAirDate
		it.VoteAverage = raw.VoteAverage
		it.PosterPath = raw.PosterPath
	case KindPerson:
		it.Title = raw.Name
		it.PosterPath = raw.ProfilePath
		it.KnownForDepartment = raw.KnownForDepartment
	}
	return it, true
}

// NormalizeAll normalizes raws in order, dropping unknown kinds, and keeps
// at most limit items when limit > 0.
func NormalizeAll(raws []RawItem, fallback Kind, limit int) []Item {
	out := make([]Item, 0, len(raws))
	for _, r := range raws {
		if limit > 0 && len(out) == limit {
			break
		}
		if it, ok := Normalize(r, fallback); ok {
			out = append(out, it)
		}
	}
	return out
}

// Truncate cuts s to at most n runes and appends "..." when it did.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
