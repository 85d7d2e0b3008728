package security

import (
	"encoding/binary"
	"image"
)

const exifOrientationTag = 0x0112

// jpegOrientation returns the EXIF orientation (1-8) of a JPEG, or 1 when
// the buffer is not a JPEG or carries no orientation.
func jpegOrientation(buf []byte) int {
	if len(buf) < 4 || buf[0] != 0xFF || buf[1] != 0xD8 {
		return 1
	}

	i := 2
	for i+4 <= len(buf) {
		if buf[i] != 0xFF {
			return 1
		}
		marker := buf[i+1]
		switch {
		case marker == 0xFF:
			i++ // fill byte
			continue
		case marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7):
			i += 2
			continue
		case marker == 0xDA || marker == 0xD9:
			return 1
		}

		segLen := int(binary.BigEndian.Uint16(buf[i+2:]))
		if segLen < 2 || i+2+segLen > len(buf) {
			return 1
		}
		if marker == 0xE1 {
			if o, ok := exifOrientation(buf[i+4 : i+2+segLen]); ok {
				return o
			}
		}
		i += 2 + segLen
	}
	return 1
}

func exifOrientation(seg []byte) (int, bool) {
	if len(seg) < 14 || string(seg[:6]) != "Exif\x00\x00" {
		return 0, false
	}
	tiff := seg[6:]

	var order binary.ByteOrder
	switch string(tiff[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, false
	}
	if order.Uint16(tiff[2:]) != 42 {
		return 0, false
	}

	ifd := int(order.Uint32(tiff[4:]))
	if ifd < 8 || ifd+2 > len(tiff) {
		return 0, false
	}
	entries := int(order.Uint16(tiff[ifd:]))
	for k := 0; k < entries; k++ {
		e := ifd + 2 + k*12
		if e+12 > len(tiff) {
			return 0, false
		}
		if order.Uint16(tiff[e:]) != exifOrientationTag {
			continue
		}
		v := int(order.Uint16(tiff[e+8:]))
		if v < 1 || v > 8 {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// applyOrientation returns src transformed so that orientation 1 is upright.
func applyOrientation(src image.Image, orientation int) image.Image {
	if orientation < 2 || orientation > 8 {
		return src
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch orientation {
			case 2: // mirror horizontal
				sx, sy = w-1-x, y
			case 3: // rotate 180
				sx, sy = w-1-x, h-1-y
			case 4: // mirror vertical
				sx, sy = x, h-1-y
			case 5: // transpose
				sx, sy = y, x
			case 6: // rotate 90 CW
				sx, sy = y, h-1-x
			case 7: // transverse
				sx, sy = w-1-y, h-1-x
			case 8: // rotate 270 CW
				sx, sy = w-1-y, x
			}
			dst.Set(x, y, src.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return dst
}
