package movienight

import (
	"context"
	"errors"
	"regexp"

	"filmklub/internal/apperr"
	"filmklub/internal/catalog"
	"filmklub/internal/metrics"
	"filmklub/internal/storage"
)

var (
	imdbURLPattern = regexp.MustCompile(`https://www\.imdb\.com/title/(tt\d+)`)
	imdbIDPattern  = regexp.MustCompile(`^tt\d+$`)
)

// SuggestRequest carries exactly one of IMDbURL or Query.
type SuggestRequest struct {
	IMDbURL string
	Query   string
	UserID  string
}

// ParseIMDbID extracts the title id from an IMDb URL or a bare id.
func ParseIMDbID(ref string) (string, bool) {
	if imdbIDPattern.MatchString(ref) {
		return ref, true
	}
	m := imdbURLPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Suggest adds a movie to the suggestion list, or un-marks it if it was
// watched before. It returns the catalog title for the confirmation.
func (c *Controller) Suggest(ctx context.Context, req SuggestRequest) (*catalog.Title, error) {
	const op = "movienight.suggest"

	switch {
	case req.IMDbURL == "" && req.Query == "":
		return nil, apperr.AmbiguousInput(op, "Provide either **imdb_url** or **movie_name**.")
	case req.IMDbURL != "" && req.Query != "":
		return nil, apperr.AmbiguousInput(op, "Provide only one of **imdb_url** or **movie_name**, not both.")
	}

	var movieID string
	if req.IMDbURL != "" {
		id, ok := ParseIMDbID(req.IMDbURL)
		if !ok {
			return nil, apperr.AmbiguousInput(op, "Invalid IMDB URL.")
		}
		movieID = id
	} else {
		titles, err := c.catalog.Search(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		pick := pickSearchResult(titles)
		if pick == nil {
			return nil, apperr.NotFound(op, "No movie found for that search.")
		}
		movieID = pick.ID
	}

	title, err := c.catalog.Title(ctx, movieID)
	if err != nil {
		return nil, err
	}
	if !title.IsMovie() {
		return nil, apperr.WrongKind(op, "This is not a movie.")
	}

	err = c.repo.Update(func(doc *storage.Document) error {
		if m, ok := doc.Movie(movieID); ok {
			if !m.Watched {
				return apperr.Duplicate(op, "This movie has already been suggested.")
			}
			m.Watched = false
			return nil
		}
		doc.Movies = append(doc.Movies, storage.Movie{
			MovieID:           movieID,
			MovieName:         title.PrimaryTitle,
			SuggestedByUserID: req.UserID,
		})
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrDuplicate) {
			c.log.Error().Err(err).Str("movie", movieID).Msg("Failed to store suggestion")
		}
		return nil, err
	}

	metrics.ObserveTransition("suggested")
	c.log.Info().Str("movie", movieID).Str("name", title.PrimaryTitle).Str("user", req.UserID).Msg("Movie suggested")
	return title, nil
}

// pickSearchResult prefers the first movie and falls back to the first hit.
func pickSearchResult(titles []catalog.Title) *catalog.Title {
	for i := range titles {
		if titles[i].IsMovie() && titles[i].ID != "" {
			return &titles[i]
		}
	}
	if len(titles) > 0 && titles[0].ID != "" {
		return &titles[0]
	}
	return nil
}
