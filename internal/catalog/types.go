package catalog

import (
	"fmt"
	"strings"
)

const TypeMovie = "movie"

type Person struct {
	DisplayName string `json:"displayName"`
}

type Named struct {
	Name string `json:"name"`
}

type Rating struct {
	AggregateRating float64 `json:"aggregateRating"`
	VoteCount       int     `json:"voteCount"`
}

type Metacritic struct {
	Score       int `json:"score"`
	ReviewCount int `json:"reviewCount"`
}

type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Title is the subset of the catalog title record the bot uses.
type Title struct {
	ID              string      `json:"id"`
	Type            string      `json:"type"`
	PrimaryTitle    string      `json:"primaryTitle"`
	StartYear       int         `json:"startYear,omitempty"`
	RuntimeSeconds  int         `json:"runtimeSeconds,omitempty"`
	Plot            string      `json:"plot,omitempty"`
	Genres          []string    `json:"genres,omitempty"`
	Rating          *Rating     `json:"rating,omitempty"`
	Metacritic      *Metacritic `json:"metacritic,omitempty"`
	Directors       []Person    `json:"directors,omitempty"`
	Writers         []Person    `json:"writers,omitempty"`
	Stars           []Person    `json:"stars,omitempty"`
	OriginCountries []Named     `json:"originCountries,omitempty"`
	SpokenLanguages []Named     `json:"spokenLanguages,omitempty"`
	PrimaryImage    *Image      `json:"primaryImage,omitempty"`
}

func (t *Title) IsMovie() bool { return t.Type == TypeMovie }

// URL is the public IMDb page for the title.
func (t *Title) URL() string {
	return fmt.Sprintf("https://www.imdb.com/title/%s/", t.ID)
}

func (t *Title) PosterURL() string {
	if t.PrimaryImage == nil {
		return ""
	}
	return t.PrimaryImage.URL
}

// RatingText renders "7.5/10 (1234 votes)" or "N/A".
func (t *Title) RatingText() string {
	if t.Rating == nil || t.Rating.AggregateRating == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%g/10 (%d votes)", t.Rating.AggregateRating, t.Rating.VoteCount)
}

func (t *Title) MetacriticText() string {
	if t.Metacritic == nil || t.Metacritic.Score == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%d/100 (%d reviews)", t.Metacritic.Score, t.Metacritic.ReviewCount)
}

func JoinPeople(ps []Person) string {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, p.DisplayName)
	}
	return orNA(strings.Join(names, ", "))
}

func JoinNamed(ns []Named) string {
	names := make([]string, 0, len(ns))
	for _, n := range ns {
		names = append(names, n.Name)
	}
	return orNA(strings.Join(names, ", "))
}

func JoinGenres(gs []string) string {
	return orNA(strings.Join(gs, ", "))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

type searchResponse struct {
	Titles []Title `json:"titles"`
}
