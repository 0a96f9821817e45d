package repository

import (
	"context"
	"fmt"
	"path"
	"time"

	"plant-monitor-service/internal/database/minio"
	"plant-monitor-service/internal/services"

	"github.com/google/uuid"
)

// PhotoRepository archives analysed photos and reads device captures.
type PhotoRepository struct {
	minio *minio.MinioClient
}

func NewPhotoRepository(client *minio.MinioClient) *PhotoRepository {
	return &PhotoRepository{minio: client}
}

// ArchivePhoto stores the image under plant-photos/YYYY/MM/DD/<id>.<ext>.
func (r *PhotoRepository) ArchivePhoto(ctx context.Context, id uuid.UUID, data []byte, contentType string) (string, error) {
	object := PhotoObjectName(time.Now().UTC(), id, contentType)
	if err := r.minio.UploadBytes(ctx, minio.Storage.PlantPhotos, object, data, contentType); err != nil {
		return "", err
	}
	return object, nil
}

// LatestCapture implements services.CaptureSource.
func (r *PhotoRepository) LatestCapture(ctx context.Context) (*services.Capture, error) {
	info, err := r.minio.LatestObject(ctx, minio.Storage.PlantCaptures, "")
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	data, err := r.minio.GetBytes(ctx, minio.Storage.PlantCaptures, info.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to download capture %s: %w", info.Key, err)
	}
	return &services.Capture{
		Name:        info.Key,
		ContentType: info.ContentType,
		Data:        data,
		CapturedAt:  info.LastModified,
	}, nil
}

func PhotoObjectName(at time.Time, id uuid.UUID, contentType string) string {
	ext := ".jpg"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	return path.Join(at.Format("2006/01/02"), id.String()+ext)
}
