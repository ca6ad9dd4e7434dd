// Package policy checks a deploy plan against Rego policies before anything
// is copied to the device.
//
// Every policy is a Rego module that defines a `deny` set. Each element is an
// object with a `message` and optionally a `severity` and `file`:
//
//	package condep.policies.size
//
//	import rego.v1
//
//	deny contains violation if {
//		some file in input.files
//		file.category == "user_files"
//		violation := {"message": "user files are not allowed", "severity": "error"}
//	}
//
// A violation of severity error or critical blocks the deploy. Built-in
// policies reject relative destinations and writes below /proc, /sys and
// /dev, and warn about empty plans. Extra policies are loaded from .rego
// files or JSON policy definitions with LoadPolicies.
package policy
