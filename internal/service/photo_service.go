package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"reflexion/internal/config"
	"reflexion/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultPhotoDir             = "/tmp/reflexion/photos"
	DefaultPhotoMaxUploadSizeMB = 8
	PhotoMaxSize                = 800
	PhotoWebPQuality            = 80
)

// PhotoUpload is a raw profile photo as received from the client.
type PhotoUpload struct {
	ContentType string
	Content     []byte
}

// PhotoService normalises profile photos and keeps them on local disk, one
// file per user.
type PhotoService struct {
	dir                string
	maxUploadSizeBytes int64
}

func NewPhotoService(cfg *config.Config) *PhotoService {
	dir := DefaultPhotoDir
	maxMB := DefaultPhotoMaxUploadSizeMB
	if cfg != nil {
		if cfg.PhotoDir != "" {
			dir = cfg.PhotoDir
		}
		if cfg.PhotoMaxUploadSizeMB > 0 {
			maxMB = cfg.PhotoMaxUploadSizeMB
		}
	}
	return &PhotoService{
		dir:                dir,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
	}
}

// Process decodes a JPEG, PNG or WebP upload, fits it within
// PhotoMaxSize x PhotoMaxSize and re-encodes it as WebP.
func (s *PhotoService) Process(in PhotoUpload) ([]byte, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := normalizeContentType(http.DetectContentType(in.Content))
	switch detected {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return nil, models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") &&
		provided != detected && !(provided == "image/jpg" && detected == "image/jpeg") {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	decoded, _, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	fitted := resizeToFit(decoded, PhotoMaxSize, PhotoMaxSize)
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, fitted, &webp.Options{Quality: PhotoWebPQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

// Store processes in and writes it to <dir>/<userID>.webp, returning the path.
func (s *PhotoService) Store(userID string, in PhotoUpload) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\.`) {
		return "", models.NewValidationError("Invalid user")
	}
	encoded, err := s.Process(in)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, userID+".webp")
	if err := writeBytesToFile(path, encoded); err != nil {
		return "", models.NewInternalError(err)
	}
	return path, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 || (w <= maxWidth && h <= maxHeight) {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if hs := float64(maxHeight) / float64(h); hs < scale {
		scale = hs
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
