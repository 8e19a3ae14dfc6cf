package configdoc

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// updatesSuffix marks the update-proposal fields that carry per-category
// property overwrites, e.g. "gpuTypes_updates".
const updatesSuffix = "_updates"

// BumpVersion increments a dotted major.minor.patch version string.
// kind "minor" bumps the minor component and resets patch to zero; any other
// kind bumps patch. Returns an error when v is not three non-negative
// integers joined by ".".
func BumpVersion(v, kind string) (string, error) {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("configdoc: version %q is not a dotted major.minor.patch triple", v)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("configdoc: version %q is not a dotted major.minor.patch triple", v)
		}
		nums[i] = n
	}

	if kind == "minor" {
		nums[1]++
		nums[2] = 0
	} else {
		nums[2]++
	}
	return fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]), nil
}

// ApplyProposal merges a JSON-encoded update proposal into doc and returns
// the updated document together with the list of change entries.
//
// The proposal may carry:
//
//   - "version_increment" ("minor" or "patch") — bumps the document version
//     and records a `version: old -> new` change entry.
//   - any number of "<category>_updates" maps — each entry overwrites
//     properties of an existing key inside the document's <category>
//     top-level object, recording `<category>.<key>.<prop>: <value>` per
//     property. Keys not already present in the category are silently
//     skipped; this path never inserts new categories or new keys.
//
// `lastUpdated` is unconditionally stamped with now (UTC). doc itself is not
// modified; the returned slice is a new document.
func ApplyProposal(doc, updatesJSON []byte, now time.Time) (updated []byte, changes []string, err error) {
	if !gjson.ValidBytes(updatesJSON) {
		return nil, nil, fmt.Errorf("configdoc: parse update payload: invalid JSON")
	}
	proposal := gjson.ParseBytes(updatesJSON)
	if !proposal.IsObject() {
		return nil, nil, fmt.Errorf("configdoc: update payload must be a JSON object")
	}

	updated = doc

	if inc := proposal.Get("version_increment"); inc.Exists() && inc.String() != "" {
		oldVersion := Version(updated)
		newVersion, err := BumpVersion(oldVersion, inc.String())
		if err != nil {
			return nil, nil, err
		}
		updated, err = sjson.SetBytes(updated, "version", newVersion)
		if err != nil {
			return nil, nil, fmt.Errorf("configdoc: set version: %w", err)
		}
		changes = append(changes, fmt.Sprintf("version: %s -> %s", oldVersion, newVersion))
	}

	updated, err = sjson.SetBytes(updated, "lastUpdated", FormatTimestamp(now))
	if err != nil {
		return nil, nil, fmt.Errorf("configdoc: set lastUpdated: %w", err)
	}

	// Walk every <category>_updates map generically against the document's
	// matching top-level object, in proposal order.
	proposal.ForEach(func(field, entries gjson.Result) bool {
		name := field.String()
		if !strings.HasSuffix(name, updatesSuffix) || !entries.IsObject() {
			return true
		}
		category := strings.TrimSuffix(name, updatesSuffix)
		updated, changes, err = applyCategory(updated, category, entries, changes)
		return err == nil
	})
	if err != nil {
		return nil, nil, err
	}

	return updated, changes, nil
}

// applyCategory overwrites properties of existing keys inside the document's
// named top-level category object. Entries whose key is absent from the
// category are skipped without recording a change.
func applyCategory(doc []byte, category string, entries gjson.Result, changes []string) ([]byte, []string, error) {
	catPath := escapePath(category)
	if !gjson.GetBytes(doc, catPath).IsObject() {
		return doc, changes, nil
	}

	var err error
	entries.ForEach(func(key, props gjson.Result) bool {
		keyPath := catPath + "." + escapePath(key.String())
		if !gjson.GetBytes(doc, keyPath).Exists() || !props.IsObject() {
			return true // only existing keys are updated
		}
		props.ForEach(func(prop, value gjson.Result) bool {
			doc, err = sjson.SetRawBytes(doc, keyPath+"."+escapePath(prop.String()), []byte(value.Raw))
			if err != nil {
				err = fmt.Errorf("configdoc: apply %s.%s.%s: %w", category, key.String(), prop.String(), err)
				return false
			}
			changes = append(changes, fmt.Sprintf("%s.%s.%s: %s", category, key.String(), prop.String(), value.String()))
			return true
		})
		return err == nil
	})
	return doc, changes, err
}
