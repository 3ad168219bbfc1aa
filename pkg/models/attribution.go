package models

import "time"

// Strategy tags stored on attributions.
type Strategy string

const (
	StrategyTrending      Strategy = "trending"
	StrategyPopular       Strategy = "popular"
	StrategyGenreBased    Strategy = "genre_based"
	StrategyCollaborative Strategy = "collaborative"
	StrategyContentBased  Strategy = "content_based"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyTrending, StrategyPopular, StrategyGenreBased, StrategyCollaborative, StrategyContentBased:
		return true
	}
	return false
}

type Attribution struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	MovieID   int64     `json:"movie_id"`
	Strategy  Strategy  `json:"recommendation_type"`
	Score     float64   `json:"score"`
	Clicked   bool      `json:"clicked"`
	CreatedAt time.Time `json:"created_at"`
}
