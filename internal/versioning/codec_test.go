// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package versioning

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/ocms-content/internal/model"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	bodies := []string{
		"",
		"short",
		strings.Repeat("<p>Lorem ipsum dolor sit amet.</p>\n", 200),
		"unicode: привет, 你好, ✓\n" + strings.Repeat("x", 1024),
	}

	for _, enc := range []model.Encoding{model.EncodingNone, model.EncodingZstd, model.EncodingGzip} {
		for _, body := range bodies {
			data, got := encodeBody(body, enc)
			decoded, err := decodeBody(data, got)
			require.NoError(t, err, "encoding %s", enc)
			assert.Equal(t, body, decoded, "encoding %s", enc)
		}
	}
}

func TestEncode_CompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("the same line over and over\n", 500)

	data, enc := encodeBody(body, model.EncodingZstd)
	assert.Equal(t, model.EncodingZstd, enc)
	assert.Less(t, len(data), len(body))

	data, enc = encodeBody(body, model.EncodingGzip)
	assert.Equal(t, model.EncodingGzip, enc)
	assert.Less(t, len(data), len(body))
}

func TestEncode_FallsBackToRaw(t *testing.T) {
	data, enc := encodeBody("a", model.EncodingZstd)
	assert.Equal(t, model.EncodingNone, enc)
	assert.Equal(t, []byte("a"), data)
}

func TestDecode_RawIsNeverDecompressed(t *testing.T) {
	// Bytes that look nothing like a compressed frame must come back as-is.
	got, err := decodeBody([]byte("plain text"), model.EncodingNone)
	require.NoError(t, err)
	assert.Equal(t, "plain text", got)
}

func TestDecode_CorruptData(t *testing.T) {
	for _, enc := range []model.Encoding{model.EncodingZstd, model.EncodingGzip, "lz4"} {
		_, err := decodeBody([]byte("definitely not compressed"), enc)
		assert.True(t, errors.Is(err, model.ErrCorruptVersion), "encoding %s: %v", enc, err)
	}
}

func TestDecode_OversizedBodyIsCorrupt(t *testing.T) {
	oversized := make([]byte, MaxBodySize+1)

	gz, err := gzipBytes(oversized)
	require.NoError(t, err)
	_, err = decodeBody(gz, model.EncodingGzip)
	assert.True(t, errors.Is(err, model.ErrCorruptVersion), "gzip: %v", err)

	enc, _, err := zstdCodec()
	require.NoError(t, err)
	zs := enc.EncodeAll(oversized, nil)
	_, err = decodeBody(zs, model.EncodingZstd)
	assert.True(t, errors.Is(err, model.ErrCorruptVersion), "zstd: %v", err)
}

func TestDecode_BodyAtLimit(t *testing.T) {
	body := strings.Repeat("a", MaxBodySize)

	for _, enc := range []model.Encoding{model.EncodingZstd, model.EncodingGzip} {
		data, got := encodeBody(body, enc)
		require.Equal(t, enc, got)
		decoded, err := decodeBody(data, got)
		require.NoError(t, err, "encoding %s", enc)
		assert.Len(t, decoded, MaxBodySize, "encoding %s", enc)
	}
}

func TestParseEncoding(t *testing.T) {
	for _, s := range []string{"none", "zstd", "gzip"} {
		enc, err := ParseEncoding(s)
		require.NoError(t, err)
		assert.Equal(t, model.Encoding(s), enc)
	}
	_, err := ParseEncoding("brotli")
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}
