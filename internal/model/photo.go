package model

import (
	"fmt"
)

// PhotoAsset represents the currently known state of the user's photo on the server
type PhotoAsset struct {
	URL       string   `json:"url"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	CropBox   *CropBox `json:"cropbox,omitempty"`
}

// Clone returns a deep copy of the asset
func (a *PhotoAsset) Clone() *PhotoAsset {
	if a == nil {
		return nil
	}
	c := *a
	if a.CropBox != nil {
		box := *a.CropBox
		c.CropBox = &box
	}
	return &c
}

// Dimensions returns the decoded pixel size of the asset
func (a *PhotoAsset) Dimensions() Dimensions {
	return Dimensions{Width: a.Width, Height: a.Height}
}

// CropBox is a rectangle in source image pixels
type CropBox struct {
	X      int `json:"x" form:"x"`
	Y      int `json:"y" form:"y"`
	Width  int `json:"width" form:"width" binding:"required,gt=0"`
	Height int `json:"height" form:"height" binding:"required,gt=0"`
}

// String renders the box as x,y,width,height
func (b CropBox) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.Width, b.Height)
}

// Dimensions holds decoded pixel dimensions
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// File is a candidate image picked by the user
type File struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
}

// HostConfig is the initial configuration supplied by the host page
type HostConfig struct {
	UserID  string      `json:"user_id"`
	Preload []string    `json:"preload"`
	Photo   *PhotoAsset `json:"photo,omitempty"`
}

// UploadResponse is the JSON payload returned by the upload endpoint
type UploadResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// CommitResponse is the JSON payload returned by the crop commit endpoint
type CommitResponse struct {
	Success   bool   `json:"success"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// CommitRequest is the form payload of a crop commit
type CommitRequest struct {
	CropData bool `form:"crop_data"`
	CropBox
}
