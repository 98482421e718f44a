// Package media stores poster thumbnails for recordings.
//
// The last composed frame of a recording is fitted to a 640x360 box,
// encoded as JPEG and cached on disk keyed by recording id. Posters back
// the thumbnail endpoint and serve as the base image for overlay previews.
package media
