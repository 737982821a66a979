package catalog

import "time"

// ReleaseInfo is one release descriptor as the server reports it.
type ReleaseInfo struct {
	Channel        string    `json:"channel"`
	Version        string    `json:"version"`
	Description    string    `json:"description"`
	ReleaseDate    time.Time `json:"release_date"`
	ExecutablePath string    `json:"executable_path"`
	SizeBytes      int64     `json:"size_bytes"`
}

// GameInfo is one game descriptor as the server reports it.
type GameInfo struct {
	Name           string        `json:"name"`
	NameID         string        `json:"name_id"`
	Description    string        `json:"description"`
	Author         string        `json:"author"`
	DefaultChannel *string       `json:"default_channel"`
	Releases       []ReleaseInfo `json:"releases"`
}

// GamesResponse is the catalog fetch payload.
type GamesResponse struct {
	Games []GameInfo `json:"games"`
}
