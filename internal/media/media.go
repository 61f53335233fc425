// Package media inspects cached asset payloads: image roles must hold WebP
// bytes, audio roles MP3 bytes. It backs the verify command's corruption
// checks.
package media

import (
	"bytes"
	"fmt"
	"io"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"

	"pouch-go/internal/pouch"
)

// sniffLimit bounds how much of a payload is read for type detection. Deep
// image checks read the whole payload.
const sniffLimit = 3072

// Check returns a CheckFunc for SyncService.Verify. In shallow mode payloads
// are type-sniffed only; deep mode additionally decodes WebP headers, which
// catches truncated or corrupted image files that still carry a valid RIFF
// preamble.
func Check(deep bool) pouch.CheckFunc {
	return func(role string, r io.Reader) error {
		switch role {
		case pouch.RoleToyImage, pouch.RoleRealImage:
			return checkImage(r, deep)
		case pouch.RoleNameAudio, pouch.RoleFactAudio:
			return checkAudio(r)
		default:
			// Unknown roles come from manifest entries this build does not
			// know about; accept anything non-empty.
			return checkNonEmpty(r)
		}
	}
}

func checkImage(r io.Reader, deep bool) error {
	if deep {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		if len(data) == 0 {
			return fmt.Errorf("empty payload")
		}
		if _, err := webp.DecodeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("decoding webp header: %w", err)
		}
		return nil
	}

	data, err := readSniff(r)
	if err != nil {
		return err
	}
	mt := mimetype.Detect(data)
	if !mt.Is("image/webp") {
		return fmt.Errorf("expected image/webp, sniffed %s", mt.String())
	}
	return nil
}

func checkAudio(r io.Reader) error {
	data, err := readSniff(r)
	if err != nil {
		return err
	}
	mt := mimetype.Detect(data)
	if mt.Is("audio/mpeg") {
		return nil
	}
	// Narration clips without an ID3 tag start directly at an MPEG frame:
	// eleven set sync bits.
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return nil
	}
	return fmt.Errorf("expected audio/mpeg, sniffed %s", mt.String())
}

func checkNonEmpty(r io.Reader) error {
	_, err := readSniff(r)
	return err
}

func readSniff(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, sniffLimit))
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	return data, nil
}
