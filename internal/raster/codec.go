package raster

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
)

// Grid files start with Magic, a little-endian uint32 header length and a JSON
// header, followed by a zstd stream holding every layer row-major in header
// order, 4 bytes per pixel, little-endian.
const (
	Magic        = "NCG1"
	maxHeaderLen = 1 << 20
)

// FileExt is the conventional extension of grid files.
const FileExt = ".ncg"

// Header describes the contents of a grid file.
type Header struct {
	Axes   Axes        `json:"axes"`
	Layers []LayerSpec `json:"layers"`
}

// Encode writes b to w in grid file format.
func Encode(w io.Writer, b *Block) error {
	hdr, err := json.Marshal(Header{Axes: b.Axes, Layers: b.Specs()})
	if err != nil {
		return eris.Wrap(err, "raster: marshal header")
	}
	var prefix [8]byte
	copy(prefix[:4], Magic)
	binary.LittleEndian.PutUint32(prefix[4:], uint32(len(hdr)))
	if _, err := w.Write(prefix[:]); err != nil {
		return eris.Wrap(err, "raster: write magic")
	}
	if _, err := w.Write(hdr); err != nil {
		return eris.Wrap(err, "raster: write header")
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return eris.Wrap(err, "raster: create zstd writer")
	}
	bw := bufio.NewWriterSize(enc, 1<<16)
	var buf [4]byte
	for _, l := range b.Layers {
		if l.DType() == Float32 {
			for _, v := range l.Floats {
				binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
				if _, err := bw.Write(buf[:]); err != nil {
					return eris.Wrapf(err, "raster: write layer %s", l.Name)
				}
			}
			continue
		}
		for _, v := range l.Ints {
			binary.LittleEndian.PutUint32(buf[:], uint32(v))
			if _, err := bw.Write(buf[:]); err != nil {
				return eris.Wrapf(err, "raster: write layer %s", l.Name)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return eris.Wrap(err, "raster: flush")
	}
	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "raster: close zstd writer")
	}
	return nil
}

// ReadHeader reads the magic and header of a grid file, leaving r positioned at
// the start of the compressed body.
func ReadHeader(r io.Reader) (Header, error) {
	var prefix [8]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Header{}, eris.Wrap(err, "raster: read magic")
	}
	if string(prefix[:4]) != Magic {
		return Header{}, eris.Errorf("raster: bad magic %q", prefix[:4])
	}
	n := binary.LittleEndian.Uint32(prefix[4:])
	if n > maxHeaderLen {
		return Header{}, eris.Errorf("raster: header length %d too large", n)
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Header{}, eris.Wrap(err, "raster: read header")
	}
	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return Header{}, eris.Wrap(err, "raster: decode header")
	}
	if err := h.Axes.Validate(); err != nil {
		return Header{}, err
	}
	for _, s := range h.Layers {
		if s.DType != Int32 && s.DType != Float32 {
			return Header{}, eris.Errorf("raster: layer %q has unsupported dtype %q", s.Name, s.DType)
		}
	}
	return h, nil
}

// Decode reads a whole grid file.
func Decode(r io.Reader) (*Block, error) {
	return decode(r, nil)
}

// ReadWindow reads only the pixels of w from a grid file. Rows outside the
// window are streamed past without being kept, so the full grid is never held
// in memory.
func ReadWindow(r io.Reader, w Window) (*Block, error) {
	return decode(r, &w)
}

func decode(r io.Reader, win *Window) (*Block, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	w := h.Axes.Full()
	if win != nil {
		if !h.Axes.Contains(*win) {
			return nil, eris.Errorf("raster: window %+v outside %dx%d grid", *win, h.Axes.Width, h.Axes.Height)
		}
		w = *win
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, eris.Wrap(err, "raster: create zstd reader")
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 1<<16)

	out := NewBlock(h.Axes.Sub(w))
	rowBuf := make([]byte, 4*h.Axes.Width)
	for _, s := range h.Layers {
		l := Layer{Name: s.Name}
		if s.DType == Float32 {
			l.Floats = make([]float32, 0, w.Size())
		} else {
			l.Ints = make([]int32, 0, w.Size())
		}
		for row := 0; row < h.Axes.Height; row++ {
			if _, err := io.ReadFull(br, rowBuf); err != nil {
				return nil, eris.Wrapf(err, "raster: read layer %s row %d", s.Name, row)
			}
			if row < w.Row || row >= w.Row+w.Height {
				continue
			}
			for c := w.Col; c < w.Col+w.Width; c++ {
				u := binary.LittleEndian.Uint32(rowBuf[4*c:])
				if s.DType == Float32 {
					l.Floats = append(l.Floats, math.Float32frombits(u))
				} else {
					l.Ints = append(l.Ints, int32(u))
				}
			}
		}
		out.Layers = append(out.Layers, l)
	}
	return out, nil
}
