package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		absoluteDestinationsPolicy(),
		protectedPathsPolicy(),
		emptyPlanPolicy(),
	}
}

// absoluteDestinationsPolicy rejects files whose remote path is relative,
// which would land them wherever the remote shell starts.
func absoluteDestinationsPolicy() Policy {
	return Policy{
		Name:        "absolute-destinations",
		Description: "Destination directories must be absolute paths",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package condep.policies.destinations

import rego.v1

deny contains violation if {
	some file in input.files
	not startswith(file.remote, "/")
	violation := {
		"message": sprintf("remote path '%s' for %s is not absolute", [file.remote, file.category]),
		"severity": "error",
		"file": file.local,
	}
}
`,
	}
}

// protectedPathsPolicy rejects writes into kernel pseudo filesystems.
func protectedPathsPolicy() Policy {
	return Policy{
		Name:        "protected-paths",
		Description: "Files must not be copied below /proc, /sys or /dev",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package condep.policies.protected

import rego.v1

protected := ["/proc/", "/sys/", "/dev/"]

deny contains violation if {
	some file in input.files
	some prefix in protected
	startswith(file.remote, prefix)
	violation := {
		"message": sprintf("remote path '%s' is below protected directory %s", [file.remote, prefix]),
		"severity": "error",
		"file": file.local,
	}
}
`,
	}
}

func emptyPlanPolicy() Policy {
	return Policy{
		Name:        "empty-plan",
		Description: "Warns when a deploy would copy nothing",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package condep.policies.empty

import rego.v1

deny contains violation if {
	count(object.get(input, "files", [])) == 0
	violation := {
		"message": "the deploy plan contains no files",
		"severity": "warning",
	}
}
`,
	}
}
