// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/encoding/gzip"
)

const (
	// CompressionNone sends messages uncompressed.
	CompressionNone = "none"
	// CompressionGzip uses the gzip compressor shipped with gRPC.
	CompressionGzip = gzip.Name
	// CompressionZstd uses klauspost/compress zstd.
	CompressionZstd = "zstd"
)

type zstdCompressor struct{}

func (zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return enc, nil
}

func (zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &zstdReader{dec: dec}, nil
}

func (zstdCompressor) Name() string {
	return CompressionZstd
}

// zstdReader releases the decoder once the message has been read completely.
type zstdReader struct {
	dec *zstd.Decoder
}

func (r *zstdReader) Read(p []byte) (int, error) {
	if r.dec == nil {
		return 0, io.EOF
	}
	n, err := r.dec.Read(p)
	if err != nil {
		r.dec.Close()
		r.dec = nil
	}
	return n, err
}

func init() {
	encoding.RegisterCompressor(zstdCompressor{})
}

// CompressionCallOptions returns the call options that enable the named
// compression on a stream.
func CompressionCallOptions(name string) ([]grpc.CallOption, error) {
	switch name {
	case "", CompressionNone:
		return nil, nil
	case CompressionGzip, CompressionZstd:
		return []grpc.CallOption{grpc.UseCompressor(name)}, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}
