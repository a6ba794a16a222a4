package apikey

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/keygate/pkg/auth"
)

// entryKeyField is the field of an Entry that holds the token.
const entryKeyField = "key"

// KeyTable maps tokens to credentials. Tables are built once at
// configuration time and never modified afterwards.
type KeyTable interface {
	// Lookup returns the credentials for token. ok is false when the token
	// is unknown or its credentials are absent.
	Lookup(token string) (creds auth.Credentials, ok bool)
}

// MapTable is the keyed form of a KeyTable.
type MapTable map[string]auth.Credentials

// Lookup returns the record stored under token. A present but nil record
// counts as missing.
func (t MapTable) Lookup(token string) (auth.Credentials, bool) {
	creds, ok := t[token]
	if !ok || creds == nil {
		return nil, false
	}
	return creds, true
}

// Entry is one element of an EntryTable: a credentials record that also
// carries its token under the "key" field.
type Entry map[string]any

// Key returns the token of the entry, or empty string when missing.
func (e Entry) Key() string {
	k, _ := e[entryKeyField].(string)
	return k
}

// EntryTable is the ordered form of a KeyTable.
type EntryTable []Entry

// Lookup scans the entries in order; the first entry whose key equals token
// wins. The returned record is a copy without the key field.
func (t EntryTable) Lookup(token string) (auth.Credentials, bool) {
	for _, e := range t {
		if e.Key() != token {
			continue
		}
		creds := make(auth.Credentials, len(e))
		for k, v := range e {
			if k == entryKeyField {
				continue
			}
			creds[k] = v
		}
		return creds, true
	}
	return nil, false
}

// ParseKeyTable decodes a key table from YAML. A mapping node yields a
// MapTable, a sequence node an EntryTable. An absent or null node yields an
// empty MapTable.
func ParseKeyTable(node *yaml.Node) (KeyTable, error) {
	if node != nil && node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node == nil || node.Kind == 0 || (node.Kind == yaml.ScalarNode && node.Tag == "!!null") {
		return MapTable{}, nil
	}

	switch node.Kind {
	case yaml.MappingNode:
		var raw map[string]map[string]any
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding api_keys mapping: %w", err)
		}
		table := make(MapTable, len(raw))
		for token, creds := range raw {
			if creds == nil {
				table[token] = nil
				continue
			}
			table[token] = auth.Credentials(creds)
		}
		return table, nil

	case yaml.SequenceNode:
		table := make(EntryTable, 0, len(node.Content))
		for i, item := range node.Content {
			var e map[string]any
			if err := item.Decode(&e); err != nil {
				return nil, fmt.Errorf("decoding api_keys[%d]: %w", i, err)
			}
			key, ok := entryKey(item)
			if !ok {
				return nil, fmt.Errorf("api_keys[%d]: %q must be a scalar", i, entryKeyField)
			}
			// Unquoted numbers decode as ints; tokens are always compared as text.
			e[entryKeyField] = key
			table = append(table, Entry(e))
		}
		return table, nil

	default:
		return nil, fmt.Errorf("api_keys must be a mapping or a list, got %s at line %d", node.Tag, node.Line)
	}
}

// entryKey returns the literal text of the key field of a mapping node.
func entryKey(item *yaml.Node) (string, bool) {
	if item.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(item.Content); i += 2 {
		if item.Content[i].Value != entryKeyField {
			continue
		}
		v := item.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
			return "", false
		}
		return v.Value, true
	}
	return "", false
}
