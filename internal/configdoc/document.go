// Package configdoc implements the document model for the ROI calculator
// pricing configuration: a single schema-free JSON object with a semantic
// `version` field, a `lastUpdated` timestamp, and opaque category maps
// (gpuTypes, modelArchitectures, storageOptions, hardware).
//
// The document is kept as raw JSON bytes and navigated with tidwall/gjson
// (mutated with tidwall/sjson) so that the on-disk key order survives every
// read-modify-write cycle. Category contents are never interpreted; they are
// passed through as opaque key/value data.
package configdoc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// TimestampLayout is the fixed `lastUpdated` format. The trailing Z is a
// literal; values are always produced from a UTC clock.
const TimestampLayout = "2006-01-02T15:04:05Z"

// ErrUnknownSection is returned by [Section] for an unrecognised alias.
var ErrUnknownSection = errors.New("unknown section")

// sectionAliases maps the caller-facing section names to the top-level keys
// of the document. "metadata" is handled separately.
var sectionAliases = map[string]string{
	"gpuTypes": "gpuTypes",
	"hardware": "hardware",
	"models":   "modelArchitectures",
	"storage":  "storageOptions",
}

// Fingerprint returns a short content fingerprint of the raw document bytes:
// the first 12 hex characters of their SHA-256 digest. Callers use it for
// change detection between reads.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:12]
}

// Pretty returns doc re-serialised as indented JSON (two-space indentation),
// preserving key order.
func Pretty(doc []byte) []byte {
	return pretty.Pretty(doc)
}

// FormatTimestamp renders t in the fixed `lastUpdated` layout, converting to
// UTC first.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Version returns the document's version string, or "" if absent.
func Version(doc []byte) string {
	return gjson.GetBytes(doc, "version").String()
}

// CategoryCount returns the number of entries in the named top-level
// category map. A missing or non-object category counts as zero.
func CategoryCount(doc []byte, category string) int {
	cat := gjson.GetBytes(doc, escapePath(category))
	if !cat.IsObject() {
		return 0
	}
	return len(cat.Map())
}

// Section narrows doc to the named section:
//
//   - ""          — the whole document.
//   - "metadata"  — exactly {version, lastUpdated}.
//   - "gpuTypes", "hardware", "models", "storage" — the corresponding
//     top-level category map ("{}" when the document lacks it).
//
// Any other alias returns [ErrUnknownSection].
func Section(doc []byte, alias string) ([]byte, error) {
	switch {
	case alias == "":
		return doc, nil

	case alias == "metadata":
		meta := []byte(`{}`)
		for _, key := range []string{"version", "lastUpdated"} {
			raw := "null"
			if v := gjson.GetBytes(doc, key); v.Exists() {
				raw = v.Raw
			}
			var err error
			meta, err = sjson.SetRawBytes(meta, key, []byte(raw))
			if err != nil {
				return nil, fmt.Errorf("configdoc: build metadata: %w", err)
			}
		}
		return meta, nil

	default:
		key, ok := sectionAliases[alias]
		if !ok {
			return nil, fmt.Errorf("configdoc: %w %q; valid sections: metadata, gpuTypes, hardware, models, storage",
				ErrUnknownSection, alias)
		}
		v := gjson.GetBytes(doc, escapePath(key))
		if !v.Exists() {
			return []byte(`{}`), nil
		}
		return []byte(v.Raw), nil
	}
}

// escapePath escapes a single JSON object key for use as one component of a
// gjson/sjson path. Category keys are opaque strings (GPU model names and
// the like) and may contain path metacharacters.
func escapePath(key string) string {
	if !strings.ContainsAny(key, `.*?|#@\`) {
		return key
	}
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
