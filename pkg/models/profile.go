package models

import "time"

type UserProfile struct {
	UserID         string    `json:"user_id"`
	FavoriteGenres []int64   `json:"favorite_genres"`
	CreatedAt      time.Time `json:"created_at"`
}
