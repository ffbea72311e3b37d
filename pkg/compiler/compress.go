package compiler

import (
	"bytes"
	"fmt"
	"io"

	"github.com/badgermind/scriptc/pkg/config"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compress wraps data in the container named by method. CompressNone
// returns data unchanged.
func Compress(data []byte, method string) ([]byte, error) {
	var buf bytes.Buffer
	switch method {
	case config.CompressNone, "":
		return data, nil
	case config.CompressGzip:
		w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case config.CompressZstd:
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown compression '%s'", method)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte, method string) ([]byte, error) {
	switch method {
	case config.CompressNone, "":
		return data, nil
	case config.CompressGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case config.CompressZstd:
		r, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return r.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unknown compression '%s'", method)
	}
}
