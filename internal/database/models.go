package database

import "github.com/NikitaDmitryuk/media-download-server/internal/models"

type MediaItem = models.MediaItem
type MediaFile = models.MediaFile
