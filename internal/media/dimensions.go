package media

import (
	"fmt"

	"github.com/disintegration/imaging"
)

// ImageDimensions returns "WxH" for a decodable image, or "" otherwise.
func ImageDimensions(path string) string {
	img, err := imaging.Open(path)
	if err != nil {
		return ""
	}
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
}
