package model

import (
	"bytes"
	"encoding/json"
)

// PayloadKind tags the two result-payload shapes the analysis service has
// been observed to return, plus a catch-all for anything else.
type PayloadKind int

const (
	// PayloadInvalid covers null, scalars and malformed structures. It
	// normalizes to an empty record sequence rather than an error.
	PayloadInvalid PayloadKind = iota
	// PayloadList is an ordered sequence of record-like objects.
	PayloadList
	// PayloadMap maps an identifier (typically a filename) to a record-like
	// object that lacks its own name field.
	PayloadMap
)

// ResultPayload is the raw terminal result of an analysis job, narrowed into
// a tagged variant instead of a free-form interface{}.
type ResultPayload struct {
	Kind    PayloadKind
	List    []json.RawMessage
	Entries []PayloadEntry
}

// PayloadEntry is one key→record pair of a map-shaped payload, in the order
// the JSON document listed it.
type PayloadEntry struct {
	Key    string
	Record json.RawMessage
}

// ParseResultPayload classifies raw result bytes into a ResultPayload. It is
// total: anything that is not a JSON array or object comes back as
// PayloadInvalid. Object keys keep document order, which makes map-shaped
// payloads normalize deterministically for a given input.
func ParseResultPayload(data []byte) ResultPayload {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ResultPayload{Kind: PayloadInvalid}
	}

	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return ResultPayload{Kind: PayloadInvalid}
		}
		return ResultPayload{Kind: PayloadList, List: list}
	case '{':
		entries, ok := decodeOrderedObject(trimmed)
		if !ok {
			return ResultPayload{Kind: PayloadInvalid}
		}
		return ResultPayload{Kind: PayloadMap, Entries: entries}
	default:
		return ResultPayload{Kind: PayloadInvalid}
	}
}

// decodeOrderedObject walks a JSON object with a token decoder so the entry
// order of the document is preserved (encoding/json maps randomize it).
func decodeOrderedObject(data []byte) ([]PayloadEntry, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, false
	}

	entries := make([]PayloadEntry, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, false
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		entries = append(entries, PayloadEntry{Key: key, Record: value})
	}

	return entries, true
}
