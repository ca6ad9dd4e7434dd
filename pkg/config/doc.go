// Package config loads condep catalogs.
//
// A catalog is a CUE document with four top-level fields:
//
//	targets:  per-target toolchain profiles, keyed by target triple
//	default:  the profile used when no target is requested
//	deploy:   per-target device settings; "default" applies to the rest
//	policies: extra .rego files checked before every deploy
//
// Documents are unified with a built-in schema, which fills in defaults
// (merge action "set", link kind "env", port 22, user "root", method
// "ssh"), and then checked with validator struct tags.
//
//	l, err := config.NewLoader()
//	ws, err := l.LoadFile("catalog.cue")
//	p, ok := ws.Catalog.Select("armv7-unknown-linux-gnueabi")
//
// Deploy settings may name a Starlark hook. The hook sees the target and
// the remote paths of the copied files as globals and leaves extra remote
// commands in a list named commands:
//
//	commands = ["ln -sf " + quote(e) + " /usr/bin" for e in executables]
//
// Watch re-runs a callback whenever a catalog file changes.
package config
