package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"forum/internal/config"
	"forum/internal/middleware"
	"forum/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MediaURLPrefix is where the server mounts the media directory.
	MediaURLPrefix = "/media/"
	// MasterMaxSize bounds both sides of a stored image.
	MasterMaxSize = 2048

	defaultMediaDir    = "media"
	defaultMaxUploadMB = 10
	jpegQuality        = 82
	webpQuality        = 70
	imageSubdir        = "discussions"
)

const invalidImageMsg = "Upload a valid image. The file you uploaded was either not an image or a corrupted image."

var (
	storedImageName = regexp.MustCompile(`^discussions/[0-9a-f]{8}(-[0-9a-f]{4}){3}-[0-9a-f]{12}\.jpg$`)

	// image.Decode format name to MIME type, for the accepted formats only.
	formatMIME = map[string]string{
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"webp": "image/webp",
	}
)

// UploadImageInput is one file from a multipart discussion form.
type UploadImageInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// ImageService keeps discussion images under mediaDir: a JPEG master plus a WebP copy beside it.
type ImageService struct {
	mediaDir string
	maxBytes int64
}

func NewImageService(cfg *config.Config) *ImageService {
	s := &ImageService{mediaDir: defaultMediaDir, maxBytes: defaultMaxUploadMB << 20}
	if cfg == nil {
		return s
	}
	if cfg.MediaDir != "" {
		s.mediaDir = cfg.MediaDir
	}
	if cfg.ImageMaxUploadSizeMB > 0 {
		s.maxBytes = int64(cfg.ImageMaxUploadSizeMB) << 20
	}
	return s
}

func (s *ImageService) MediaDir() string { return s.mediaDir }

// Store checks the upload, scales it to fit MasterMaxSize and writes both encodings.
// Every upload gets its own file name, so no two discussions share an asset.
// The returned URL points at the JPEG.
func (s *ImageService) Store(_ context.Context, in UploadImageInput) (string, error) {
	img, err := s.decodeUpload(in)
	if err != nil {
		return "", err
	}

	img = resizeToFit(img, MasterMaxSize, MasterMaxSize)
	var jpg, wp bytes.Buffer
	if err := jpeg.Encode(&jpg, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := webp.Encode(&wp, img, &webp.Options{Quality: webpQuality}); err != nil {
		return "", models.NewInternalError(err)
	}

	rel := path.Join(imageSubdir, uuid.NewString()+".jpg")
	jpgPath, webpPath := s.paths(rel)
	if err := writeMedia(jpgPath, jpg.Bytes()); err != nil {
		return "", models.NewInternalError(err)
	}
	if err := writeMedia(webpPath, wp.Bytes()); err != nil {
		_ = os.Remove(jpgPath)
		return "", models.NewInternalError(err)
	}
	return MediaURLPrefix + rel, nil
}

func (s *ImageService) decodeUpload(in UploadImageInput) (image.Image, error) {
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes>>20))
	}
	if !isAcceptedMIME(baseMIME(http.DetectContentType(in.Content))) {
		return nil, models.NewValidationError(invalidImageMsg)
	}

	img, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError(invalidImageMsg)
	}
	// A declared image type has to agree with what the bytes decode as.
	declared := baseMIME(in.ContentType)
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if strings.HasPrefix(declared, "image/") && declared != formatMIME[format] {
		return nil, models.NewValidationError("Image content type mismatch")
	}
	return img, nil
}

// Delete removes an image written by Store along with its WebP copy.
// Anything else is left alone.
func (s *ImageService) Delete(ctx context.Context, url string) {
	if url == "" {
		return
	}
	rel := strings.TrimPrefix(url, MediaURLPrefix)
	if !storedImageName.MatchString(rel) {
		middleware.Logger.WarnContext(ctx, "not deleting unrecognized image path", slog.String("img", url))
		return
	}
	jpgPath, webpPath := s.paths(rel)
	_ = os.Remove(jpgPath)
	_ = os.Remove(webpPath)
}

func (s *ImageService) DeleteAll(ctx context.Context, urls []string) {
	for _, u := range urls {
		s.Delete(ctx, u)
	}
}

func (s *ImageService) paths(rel string) (jpgPath, webpPath string) {
	jpgPath = filepath.Join(s.mediaDir, filepath.FromSlash(rel))
	return jpgPath, strings.TrimSuffix(jpgPath, ".jpg") + ".webp"
}

// resizeToFit scales src down, keeping its aspect ratio, until it fits maxW x maxH.
// Images that already fit come back untouched.
func resizeToFit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return src
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func baseMIME(ct string) string {
	ct = strings.TrimSpace(ct)
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	return strings.ToLower(ct)
}

func isAcceptedMIME(mt string) bool {
	for _, ok := range formatMIME {
		if mt == ok {
			return true
		}
	}
	return false
}

func writeMedia(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}
