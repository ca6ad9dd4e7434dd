package config

import (
	_ "embed"
)

//go:embed defaults/condep.cue
var builtinCatalog []byte

// BuiltinName is the pseudo file name reported for the embedded catalog.
const BuiltinName = "builtin:condep.cue"

// BuiltinSource returns the embedded catalog text.
func BuiltinSource() []byte {
	return append([]byte(nil), builtinCatalog...)
}

// Builtin loads the embedded PocketBook catalog.
func Builtin() (*Workspace, error) {
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.Parse(BuiltinName, builtinCatalog)
}
