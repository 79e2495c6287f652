package velocity

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"strconv"

	// Raster formats accepted by DecodeWithParams.
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// PNG text keys carrying the decode parameters.
const (
	KeyUOffset = "u_offset"
	KeyVOffset = "v_offset"
	KeyUScale  = "u_scale"
	KeyVScale  = "v_scale"
)

// ErrMissingParams is returned by Decode when the raster lacks embedded decode
// parameters.
var ErrMissingParams = errors.New("velocity: raster has no embedded decode parameters")

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// Decode decodes a PNG raster whose decode parameters are embedded as tEXt
// chunks.
func Decode(data []byte) (*Image, error) {
	p, err := ReadParams(data)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png raster: %w", err)
	}
	return FromImage(img, p)
}

// DecodeWithParams decodes a raster in any registered format (PNG, TIFF,
// WebP) using explicit decode parameters.
func DecodeWithParams(r io.Reader, p Params) (*Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding raster: %w", err)
	}
	im, err := FromImage(img, p)
	if err != nil {
		return nil, fmt.Errorf("converting %s raster: %w", format, err)
	}
	return im, nil
}

// ReadParams extracts the decode parameters from the tEXt chunks of a PNG.
func ReadParams(data []byte) (Params, error) {
	texts, err := readTextChunks(data)
	if err != nil {
		return Params{}, err
	}

	var p Params
	fields := []struct {
		key string
		dst *float64
	}{
		{KeyUOffset, &p.UOffset},
		{KeyVOffset, &p.VOffset},
		{KeyUScale, &p.UScale},
		{KeyVScale, &p.VScale},
	}
	for _, f := range fields {
		s, ok := texts[f.key]
		if !ok {
			return Params{}, fmt.Errorf("%w: %s", ErrMissingParams, f.key)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Params{}, fmt.Errorf("parsing %s: %w", f.key, err)
		}
		*f.dst = v
	}
	return p, nil
}

// Encode writes im as a PNG with its decode parameters embedded.
func Encode(w io.Writer, im *Image) error {
	rgba := image.NewNRGBA(image.Rect(0, 0, im.width, im.height))
	for i := 0; i < im.width*im.height; i++ {
		rgba.Pix[i*4] = im.data[i*4]
		rgba.Pix[i*4+1] = im.data[i*4+1]
		rgba.Pix[i*4+3] = 255
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return fmt.Errorf("encoding png raster: %w", err)
	}
	encoded := buf.Bytes()

	// IHDR is always the first chunk: 8 signature + 4 length + 4 type + 13 data + 4 crc.
	const afterIHDR = 8 + 4 + 4 + 13 + 4
	if _, err := w.Write(encoded[:afterIHDR]); err != nil {
		return err
	}
	p := im.Params()
	for _, kv := range [][2]string{
		{KeyUOffset, strconv.FormatFloat(p.UOffset, 'g', -1, 64)},
		{KeyVOffset, strconv.FormatFloat(p.VOffset, 'g', -1, 64)},
		{KeyUScale, strconv.FormatFloat(p.UScale, 'g', -1, 64)},
		{KeyVScale, strconv.FormatFloat(p.VScale, 'g', -1, 64)},
	} {
		if err := writeTextChunk(w, kv[0], kv[1]); err != nil {
			return err
		}
	}
	_, err := w.Write(encoded[afterIHDR:])
	return err
}

func readTextChunks(data []byte) (map[string]string, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("velocity: not a png raster")
	}

	texts := make(map[string]string)
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos:]))
		typ := string(data[pos+4 : pos+8])
		start := pos + 8
		end := start + length
		if end+4 > len(data) {
			return nil, fmt.Errorf("velocity: truncated %s chunk", typ)
		}
		if typ == "tEXt" {
			if k := bytes.IndexByte(data[start:end], 0); k >= 0 {
				texts[string(data[start:start+k])] = string(data[start+k+1 : end])
			}
		}
		if typ == "IEND" {
			break
		}
		pos = end + 4
	}
	return texts, nil
}

func writeTextChunk(w io.Writer, key, value string) error {
	body := make([]byte, 0, 4+len(key)+1+len(value))
	body = append(body, "tEXt"...)
	body = append(body, key...)
	body = append(body, 0)
	body = append(body, value...)

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(body)-4))
	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(body))

	for _, b := range [][]byte{hdr[:], body, crc[:]} {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("writing %s chunk: %w", key, err)
		}
	}
	return nil
}

// Uniform returns a w×h image filled with a single raw sample pair, mainly
// useful for tests and synthetic fields.
func Uniform(w, h int, su, sv uint8, p Params) *Image {
	data := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		data[i*4] = su
		data[i*4+1] = sv
		data[i*4+3] = 255
	}
	im, err := New(data, w, h, p.UOffset, p.VOffset, p.UScale, p.VScale)
	if err != nil {
		panic(err)
	}
	return im
}

// Generate builds an image by evaluating fn at every pixel centre in
// normalised coordinates and quantising the result with p.
func Generate(w, h int, p Params, fn func(x, y float64) (u, v float64)) (*Image, error) {
	data := make([]byte, w*h*4)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			u, v := fn((float64(i)+0.5)/float64(w), (float64(j)+0.5)/float64(h))
			k := (j*w + i) * 4
			data[k] = quantise(u, p.UOffset, p.UScale)
			data[k+1] = quantise(v, p.VOffset, p.VScale)
			data[k+3] = 255
		}
	}
	return New(data, w, h, p.UOffset, p.VOffset, p.UScale, p.VScale)
}

func quantise(value, offset, scale float64) uint8 {
	if scale == 0 {
		return 0
	}
	raw := (value - offset) / scale
	switch {
	case raw <= 0:
		return 0
	case raw >= 255:
		return 255
	}
	return uint8(raw + 0.5)
}
