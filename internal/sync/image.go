package sync

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"fieldvisit/internal/model"
)

const (
	// maxCompressDim - максимальный размер стороны после ресайза
	maxCompressDim = 1200

	// Параметры цикла перекодирования JPEG
	compressStartQuality = 90
	compressQualityStep  = 10
	compressFloorQuality = 30
	compressMaxAttempts  = 5
)

// compressPhoto пережимает фото, если его закодированный размер превышает
// maxPhotoBytes: декодирование, ресайз до maxCompressDim по большей стороне
// и перекодирование в JPEG с понижением качества, пока размер не уложится в
// лимит. Любая ошибка оставляет фото без изменений - конвейер не падает из-за
// одного снимка.
func (p *Preparer) compressPhoto(photo model.Photo) model.Photo {
	if len(photo.DataURL) <= maxPhotoBytes {
		return photo
	}

	mime, raw, err := decodeDataURL(photo.DataURL)
	if err != nil || !strings.HasPrefix(mime, "image/") {
		// Не изображение или неразбираемый dataURL - пропускаем как есть
		if err != nil {
			p.log.Warn("photo left uncompressed", "photo_id", photo.ID, "error", err)
		}
		return photo
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		p.log.Warn("photo decode failed, left uncompressed", "photo_id", photo.ID, "error", err)
		return photo
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxCompressDim || bounds.Dy() > maxCompressDim {
		img = imaging.Fit(img, maxCompressDim, maxCompressDim, imaging.Lanczos)
	}

	quality := compressStartQuality
	var encoded string
	for attempt := 0; attempt < compressMaxAttempts; attempt++ {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			p.log.Warn("photo encode failed, left uncompressed", "photo_id", photo.ID, "error", err)
			return photo
		}

		encoded = encodeDataURL("image/jpeg", buf.Bytes())
		if len(encoded) <= maxPhotoBytes || quality <= compressFloorQuality {
			break
		}
		quality -= compressQualityStep
	}

	p.log.Debug("photo recompressed",
		"photo_id", photo.ID,
		"before", len(photo.DataURL),
		"after", len(encoded),
		"quality", quality,
	)

	photo.DataURL = encoded
	return photo
}

// decodeDataURL разбирает data:<mime>;base64,<payload>
func decodeDataURL(s string) (mime string, data []byte, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, fmt.Errorf("not a data url")
	}

	rest := s[len("data:"):]
	sep := strings.IndexByte(rest, ',')
	if sep < 0 {
		return "", nil, fmt.Errorf("malformed data url")
	}

	meta, payload := rest[:sep], rest[sep+1:]
	mime = meta
	if i := strings.IndexByte(meta, ';'); i >= 0 {
		mime = meta[:i]
		if !strings.Contains(meta[i:], "base64") {
			return "", nil, fmt.Errorf("unsupported data url encoding")
		}
	}

	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url payload: %w", err)
	}

	return mime, data, nil
}

func encodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
