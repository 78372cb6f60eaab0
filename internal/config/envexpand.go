package config

import "os"

// ExpandEnv expands ${VAR} and $VAR references in YAML content before
// parsing, the same shell-style expansion the teacher applies to its own
// YAML configuration files. Missing variables expand to empty string.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
