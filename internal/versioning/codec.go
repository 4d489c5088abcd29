// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package versioning

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/olegiv/ocms-content/internal/model"
)

// MaxBodySize bounds version bodies. Create refuses larger bodies and
// decoding treats output beyond it as corruption.
const MaxBodySize = 64 << 20

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxBodySize))
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

// ParseEncoding validates an encoding name.
func ParseEncoding(s string) (model.Encoding, error) {
	switch model.Encoding(s) {
	case model.EncodingNone, model.EncodingZstd, model.EncodingGzip:
		return model.Encoding(s), nil
	}
	return "", fmt.Errorf("%w: unknown encoding %q", model.ErrInvalidInput, s)
}

// encodeBody compresses body with the preferred encoding. Compression is
// best-effort: on failure, or when the result is not smaller, the raw body
// is stored and tagged EncodingNone.
func encodeBody(body string, preferred model.Encoding) ([]byte, model.Encoding) {
	raw := []byte(body)

	var (
		out []byte
		err error
	)
	switch preferred {
	case model.EncodingZstd:
		var enc *zstd.Encoder
		if enc, _, err = zstdCodec(); err == nil {
			out = enc.EncodeAll(raw, make([]byte, 0, len(raw)/2))
		}
	case model.EncodingGzip:
		out, err = gzipBytes(raw)
	default:
		return raw, model.EncodingNone
	}

	if err != nil || len(out) >= len(raw) {
		return raw, model.EncodingNone
	}
	return out, preferred
}

// decodeBody reverses encodeBody according to the stored tag. Raw bodies are
// returned untouched; decode failures are reported as ErrCorruptVersion.
func decodeBody(data []byte, enc model.Encoding) (string, error) {
	switch enc {
	case model.EncodingNone, "":
		return string(data), nil
	case model.EncodingZstd:
		_, dec, err := zstdCodec()
		if err != nil {
			return "", fmt.Errorf("%w: zstd unavailable: %w", model.ErrCorruptVersion, err)
		}
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return "", fmt.Errorf("%w: %w", model.ErrCorruptVersion, err)
		}
		return string(out), nil
	case model.EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("%w: %w", model.ErrCorruptVersion, err)
		}
		defer func() { _ = r.Close() }()
		out, err := io.ReadAll(io.LimitReader(r, MaxBodySize+1))
		if err != nil {
			return "", fmt.Errorf("%w: %w", model.ErrCorruptVersion, err)
		}
		if len(out) > MaxBodySize {
			return "", fmt.Errorf("%w: decoded body exceeds %d bytes", model.ErrCorruptVersion, MaxBodySize)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("%w: unknown encoding %q", model.ErrCorruptVersion, enc)
	}
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
