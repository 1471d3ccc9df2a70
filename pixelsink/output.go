package pixelsink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"lumen/rgb"

	"cloud.google.com/go/storage"
)

// ParseGCSPath splits gs://bucket/object into its parts.
func ParseGCSPath(p string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(p, "gs://")
	if rest == p {
		return "", "", fmt.Errorf("%q is not a gs:// path", p)
	}
	i := strings.Index(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("%q does not name a bucket and object", p)
	}
	return rest[:i], rest[i+1:], nil
}

// Output is an image file being written.  Exactly one of Close or Abort
// should be called.
type Output struct {
	sink Sink
	w    io.WriteCloser

	// localName is the file to remove on Abort; empty for gs:// outputs.
	localName string

	// cancel stops a gs:// upload without committing the object.
	cancel context.CancelFunc
}

// OpenOutput creates the image file at name.  The extension picks the format
// (.ppm or .png).  Names of the form gs://bucket/object are written to Cloud
// Storage through gcs.  Unless overwrite is set, an existing file or object is
// an error.
func OpenOutput(ctx context.Context, name string, rows, cols int, overwrite bool, gcs *storage.Client) (*Output, error) {
	ext := strings.ToLower(path.Ext(name))
	if ext != ".ppm" && ext != ".png" {
		return nil, fmt.Errorf("unknown output format %q (want .ppm or .png)", ext)
	}

	out := &Output{}
	if strings.HasPrefix(name, "gs://") {
		gcsCtx, cancel := context.WithCancel(ctx)
		ow, err := openGCS(gcsCtx, name, ext, overwrite, gcs)
		if err != nil {
			cancel()
			return nil, err
		}
		out.w = ow
		out.cancel = cancel
	} else {
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if !overwrite {
			flags |= os.O_EXCL
		}
		f, err := os.OpenFile(name, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("while creating output file: %w", err)
		}
		out.w = f
		out.localName = name
	}

	switch ext {
	case ".ppm":
		p, err := NewPPM(out.w, rows, cols)
		if err != nil {
			out.Abort()
			return nil, err
		}
		out.sink = p
	case ".png":
		out.sink = NewPNG(out.w, rows, cols)
	}

	return out, nil
}

func (o *Output) WritePixel(row, col int, p rgb.Pixel) error {
	return o.sink.WritePixel(row, col, p)
}

// Close finishes the image and commits the file.
func (o *Output) Close() error {
	if o.cancel != nil {
		defer o.cancel()
	}

	sinkErr := o.sink.Close()
	if sinkErr != nil {
		o.Abort()
		return sinkErr
	}
	if err := o.w.Close(); err != nil {
		return fmt.Errorf("while closing output: %w", err)
	}
	return nil
}

// Abort discards the output.  Nothing is encoded, a local file is removed, and
// a gs:// object is never committed.
func (o *Output) Abort() error {
	if o.cancel != nil {
		o.cancel()
		return nil
	}

	o.w.Close()
	if err := os.Remove(o.localName); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("while removing output file: %w", err)
	}
	return nil
}

func openGCS(ctx context.Context, name, ext string, overwrite bool, gcs *storage.Client) (*storage.Writer, error) {
	if gcs == nil {
		return nil, errors.New("gs:// output requested without a storage client")
	}
	bucket, object, err := ParseGCSPath(name)
	if err != nil {
		return nil, err
	}

	obj := gcs.Bucket(bucket).Object(object)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	if ext == ".png" {
		w.ContentType = "image/png"
	} else {
		w.ContentType = "image/x-portable-pixmap"
	}
	return w, nil
}
