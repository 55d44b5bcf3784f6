package domain

// MediaType is the kind of entry returned by the TMDB multi search.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeTV     MediaType = "tv"
	MediaTypePerson MediaType = "person"
)

// MetadataResult is the best TMDB match for a canonical title.
//
// It keeps the TMDB field names so the stored metadata blob matches the
// search API shape, except that PosterURL and BackdropURL hold absolute
// image URLs (or nil), never the relative paths returned by the API.
type MetadataResult struct {
	ID               int64     `json:"id" bson:"id"`
	Adult            bool      `json:"adult" bson:"adult"`
	Name             string    `json:"name,omitempty" bson:"name,omitempty"`
	OriginalName     string    `json:"original_name,omitempty" bson:"original_name,omitempty"`
	Title            string    `json:"title,omitempty" bson:"title,omitempty"`
	OriginalTitle    string    `json:"original_title,omitempty" bson:"original_title,omitempty"`
	Overview         string    `json:"overview" bson:"overview"`
	MediaType        MediaType `json:"media_type" bson:"media_type"`
	PosterURL        *string   `json:"poster_path" bson:"poster_path"`
	BackdropURL      *string   `json:"backdrop_path" bson:"backdrop_path"`
	OriginalLanguage *string   `json:"original_language" bson:"original_language"`
	GenreIDs         []int     `json:"genre_ids" bson:"genre_ids"`
	Popularity       float64   `json:"popularity" bson:"popularity"`
	VoteCount        int64     `json:"vote_count" bson:"vote_count"`
	VoteAverage      float64   `json:"vote_average" bson:"vote_average"`
	FirstAirDate     *string   `json:"first_air_date" bson:"first_air_date"`
	ReleaseDate      *string   `json:"release_date,omitempty" bson:"release_date,omitempty"`
	OriginCountry    []string  `json:"origin_country" bson:"origin_country"`
}

// DisplayTitle returns the movie title or the show/person name.
func (m *MetadataResult) DisplayTitle() string {
	if m == nil {
		return ""
	}
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}
