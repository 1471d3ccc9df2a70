// Package sampleimage accumulates per-pixel color samples and stores them in a
// resumable checkpoint file.
package sampleimage

import (
	"bufio"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"lumen/vmath/vec3"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	Channels          = 3
	dataLayoutVersion = 1

	// Limits on what a checkpoint header may claim, checked before anything
	// is allocated.
	maxHeaderLength = 1 << 20
	maxPixels       = 1 << 26
)

var ErrLayoutVersion = errors.New("unsupported data layout version")

var tracer = otel.Tracer("lumen/sampleimage")

// Image holds running color sums and sample counts for a RowSize x ColSize
// image.  Row 0 is the top of the picture.
type Image struct {
	RowSize, ColSize int

	// Sums is indexed by (r*ColSize + c)*Channels + channel.
	Sums []float32

	// Counts is indexed by r*ColSize + c.
	Counts []float32
}

type Sample struct {
	Sum   vec3.T
	Count int
}

func (s *Image) Resize(rowSize, colSize int) {
	s.RowSize = rowSize
	s.ColSize = colSize

	s.Sums = make([]float32, rowSize*colSize*Channels)
	s.Counts = make([]float32, rowSize*colSize)
}

func (s *Image) pixelIndex(r, c int) int {
	return r*s.ColSize + c
}

func (s *Image) RecordSample(r, c int, color vec3.T) {
	idx := s.pixelIndex(r, c)
	for ch := 0; ch < Channels; ch++ {
		s.Sums[idx*Channels+ch] += float32(color[ch])
	}
	s.Counts[idx]++
}

func (s *Image) ReadSample(r, c int) Sample {
	idx := s.pixelIndex(r, c)
	var sum vec3.T
	for ch := 0; ch < Channels; ch++ {
		sum[ch] = float64(s.Sums[idx*Channels+ch])
	}
	return Sample{Sum: sum, Count: int(s.Counts[idx])}
}

// TotalSamples counts samples across the whole image.
func (s *Image) TotalSamples() int {
	total := 0
	for _, n := range s.Counts {
		total += int(n)
	}
	return total
}

// Cut copies the rectangle [rowSrc, rowLim) x [colSrc, colLim) into a new image.
func (s *Image) Cut(rowSrc, rowLim, colSrc, colLim int) *Image {
	dst := &Image{}
	dst.Resize(rowLim-rowSrc, colLim-colSrc)

	for r := rowSrc; r < rowLim; r++ {
		for c := colSrc; c < colLim; c++ {
			srcIndex := s.pixelIndex(r, c)
			dstIndex := dst.pixelIndex(r-rowSrc, c-colSrc)

			copy(dst.Sums[dstIndex*Channels:(dstIndex+1)*Channels], s.Sums[srcIndex*Channels:(srcIndex+1)*Channels])
			dst.Counts[dstIndex] = s.Counts[srcIndex]
		}
	}

	return dst
}

// Paste overwrites the rectangle of s whose top-left corner is (rowSrc, colSrc)
// with the contents of src.
func (s *Image) Paste(src *Image, rowSrc, colSrc int) {
	for r := 0; r < src.RowSize; r++ {
		for c := 0; c < src.ColSize; c++ {
			srcIndex := src.pixelIndex(r, c)
			dstIndex := s.pixelIndex(r+rowSrc, c+colSrc)

			copy(s.Sums[dstIndex*Channels:(dstIndex+1)*Channels], src.Sums[srcIndex*Channels:(srcIndex+1)*Channels])
			s.Counts[dstIndex] = src.Counts[srcIndex]
		}
	}
}

func Read(ctx context.Context, in io.Reader) (*Image, error) {
	_, span := tracer.Start(ctx, "sampleimage.Read")
	defer span.End()

	im, err := read(in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("rows", im.RowSize), attribute.Int("cols", im.ColSize))
	return im, nil
}

func read(in io.Reader) (*Image, error) {
	var headerLength uint64
	if err := binary.Read(in, binary.LittleEndian, &headerLength); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}

	if headerLength > maxHeaderLength {
		return nil, fmt.Errorf("header length %d exceeds limit %d", headerLength, maxHeaderLength)
	}
	headerBytes := make([]byte, int(headerLength))
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header bytes: %w", err)
	}

	hdr := &structpb.Struct{}
	if err := proto.Unmarshal(headerBytes, hdr); err != nil {
		return nil, fmt.Errorf("while unmarshaling header: %w", err)
	}

	fields := hdr.GetFields()
	if v := fields["dataLayoutVersion"].GetNumberValue(); v != dataLayoutVersion {
		return nil, fmt.Errorf("%w: %v", ErrLayoutVersion, v)
	}
	if ch := fields["channels"].GetNumberValue(); ch != Channels {
		return nil, fmt.Errorf("bad channel count: %v", ch)
	}
	rowsVal := fields["rowSize"].GetNumberValue()
	colsVal := fields["colSize"].GetNumberValue()
	// Comparisons are false for NaN, so NaN sizes are rejected too.
	if !(rowsVal >= 0 && colsVal >= 0 && rowsVal*colsVal <= maxPixels && rowsVal <= maxPixels && colsVal <= maxPixels) {
		return nil, fmt.Errorf("bad dimensions %vx%v (at most %d pixels)", rowsVal, colsVal, maxPixels)
	}
	rows, cols := int(rowsVal), int(colsVal)

	im := &Image{}
	im.Resize(rows, cols)

	zipReader, err := zlib.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("while opening zip reader: %w", err)
	}
	defer zipReader.Close()

	if err := binary.Read(zipReader, binary.LittleEndian, im.Sums); err != nil {
		return nil, fmt.Errorf("while reading sums: %w", err)
	}

	if err := binary.Read(zipReader, binary.LittleEndian, im.Counts); err != nil {
		return nil, fmt.Errorf("while reading counts: %w", err)
	}

	return im, nil
}

func ReadFromFile(ctx context.Context, name string) (*Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	return Read(ctx, bufio.NewReader(f))
}

func Write(ctx context.Context, im *Image, w io.Writer) error {
	_, span := tracer.Start(ctx, "sampleimage.Write")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", im.RowSize), attribute.Int("cols", im.ColSize))

	if err := write(im, w); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func write(im *Image, w io.Writer) error {
	hdr, err := structpb.NewStruct(map[string]interface{}{
		"rowSize":           im.RowSize,
		"colSize":           im.ColSize,
		"channels":          Channels,
		"dataLayoutVersion": dataLayoutVersion,
	})
	if err != nil {
		return fmt.Errorf("while building header: %w", err)
	}

	hdrBytes, err := proto.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	headerLengthBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(headerLengthBytes, uint64(len(hdrBytes)))
	if _, err := w.Write(headerLengthBytes); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(hdrBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	zipWriter := zlib.NewWriter(w)

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Sums); err != nil {
		return fmt.Errorf("while writing sums: %w", err)
	}

	if err := binary.Write(zipWriter, binary.LittleEndian, im.Counts); err != nil {
		return fmt.Errorf("while writing counts: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("while closing zip writer: %w", err)
	}

	return nil
}

// WriteToFile replaces name with the encoded image via a temporary file and a
// rename.
func WriteToFile(ctx context.Context, im *Image, name string) error {
	tmp := name + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("while creating file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := Write(ctx, im, bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("while flushing: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing file: %w", err)
	}

	if err := os.Rename(tmp, name); err != nil {
		return fmt.Errorf("while renaming into place: %w", err)
	}
	return nil
}
