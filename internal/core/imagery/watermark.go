// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package imagery

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"

	"github.com/pymenow/f3backEnd/internal/core/apperr"
)

// WatermarkMargin is the distance in pixels between the mark and the bottom
// right corner of the image.
const WatermarkMargin = 10

// Watermarker stamps generated images. Images at least 1024 pixels high use
// the tall mark when one is loaded.
type Watermarker struct {
	mark     image.Image
	tallMark image.Image
}

// NewWatermarker decodes the marks. tall may be nil. A nil Watermarker (or
// one without a mark) returns images unchanged.
func NewWatermarker(mark, tall io.Reader) (*Watermarker, error) {
	w := &Watermarker{}
	if mark != nil {
		img, err := imaging.Decode(mark)
		if err != nil {
			return nil, fmt.Errorf("failed to decode watermark: %w", err)
		}
		w.mark = img
	}
	if tall != nil {
		img, err := imaging.Decode(tall)
		if err != nil {
			return nil, fmt.Errorf("failed to decode 1024 watermark: %w", err)
		}
		w.tallMark = img
	}
	return w, nil
}

// Enabled reports whether Apply changes images.
func (w *Watermarker) Enabled() bool {
	return w != nil && w.mark != nil
}

// Apply overlays the mark in the south east corner and encodes the result as
// PNG.
func (w *Watermarker) Apply(data []byte) ([]byte, error) {
	if !w.Enabled() {
		return data, nil
	}
	base, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "downloaded file is not a decodable image")
	}

	mark := w.mark
	if w.tallMark != nil && base.Bounds().Dy() >= 1024 {
		mark = w.tallMark
	}
	b, m := base.Bounds(), mark.Bounds()
	pos := image.Pt(b.Max.X-m.Dx()-WatermarkMargin, b.Max.Y-m.Dy()-WatermarkMargin)
	out := imaging.Overlay(base, mark, pos, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode watermarked image: %w", err)
	}
	return buf.Bytes(), nil
}

// Fetch downloads an image and returns its bytes and sniffed MIME type.
// Anything that is not an image is rejected.
func Fetch(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Validation, err, "invalid image url")
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", apperr.New(apperr.Validation, "downloaded file exceeds %d bytes", maxBytes)
	}
	if !filetype.IsImage(data) {
		return nil, "", apperr.New(apperr.Validation, "downloaded file is not an image")
	}
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sniff image type: %w", err)
	}
	return data, kind.MIME.Value, nil
}
