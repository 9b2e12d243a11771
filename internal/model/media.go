package model

import "time"

// MediaFile represents a photo stored by the server
type MediaFile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"created_at"`
	StoragePath string    `json:"-"`
}

// ProfilePhoto is the server side record of a user's photo and its crop
type ProfilePhoto struct {
	Media     MediaFile  `json:"media"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	CropBox   *CropBox   `json:"cropbox,omitempty"`
	CroppedAt *time.Time `json:"cropped_at,omitempty"`
}

// Asset converts the record into the client side view
func (p *ProfilePhoto) Asset() *PhotoAsset {
	asset := &PhotoAsset{
		URL:       p.Media.URL,
		Thumbnail: p.Thumbnail,
		Width:     p.Media.Width,
		Height:    p.Media.Height,
	}
	if p.CropBox != nil {
		box := *p.CropBox
		asset.CropBox = &box
	}
	return asset
}
