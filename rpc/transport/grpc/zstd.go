package grpc

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// ZstdName is the name the zstd compressor is registered with
const ZstdName = "zstd"

func init() {
	encoding.RegisterCompressor(&zstdCompressor{})
}

// zstdCompressor implements encoding.Compressor. Encoders and decoders are
// pooled, each is used by one call at a time.
type zstdCompressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func (c *zstdCompressor) Name() string {
	return ZstdName
}

func (c *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc, ok := c.encoders.Get().(*zstd.Encoder)
	if ok {
		enc.Reset(w)
	} else {
		var err error
		if enc, err = zstd.NewWriter(w, zstd.WithEncoderConcurrency(1)); err != nil {
			return nil, err
		}
	}
	return &zstdWriter{enc: enc, pool: &c.encoders}, nil
}

func (c *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, ok := c.decoders.Get().(*zstd.Decoder)
	if ok {
		if err := dec.Reset(r); err != nil {
			return nil, err
		}
	} else {
		var err error
		if dec, err = zstd.NewReader(r, zstd.WithDecoderConcurrency(1)); err != nil {
			return nil, err
		}
	}
	return &zstdReader{dec: dec, pool: &c.decoders}, nil
}

// --------------------------------------------------------------------------
// Pooled Reader / Writer
// --------------------------------------------------------------------------

type zstdWriter struct {
	enc  *zstd.Encoder
	pool *sync.Pool
}

func (w *zstdWriter) Write(p []byte) (int, error) {
	return w.enc.Write(p)
}

// Close flushes the frame and returns the encoder to the pool
func (w *zstdWriter) Close() error {
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	w.pool.Put(w.enc)
	w.enc = nil
	return err
}

type zstdReader struct {
	dec  *zstd.Decoder
	pool *sync.Pool
}

// Read returns the decoder to the pool once the message is fully read
func (r *zstdReader) Read(p []byte) (int, error) {
	if r.dec == nil {
		return 0, io.EOF
	}
	n, err := r.dec.Read(p)
	if err == io.EOF {
		r.pool.Put(r.dec)
		r.dec = nil
	}
	return n, err
}
