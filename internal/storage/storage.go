package storage

import "context"

// Service uploads completed downloads to remote object storage.
type Service interface {
	Enabled() bool
	UploadFiles(ctx context.Context, files []string, keyBase string) (string, error)
}

// Disabled is the Service used when no bucket is configured. Uploads
// report success with an empty location so the download flow never
// branches on storage availability.
var Disabled Service = disabledService{}

type disabledService struct{}

func (disabledService) Enabled() bool { return false }

func (disabledService) UploadFiles(context.Context, []string, string) (string, error) {
	return "", nil
}
