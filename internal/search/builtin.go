package search

import _ "embed"

//go:embed profiles/fast.yaml
var fastYAML []byte

//go:embed profiles/deep.yaml
var deepYAML []byte

//go:embed profiles/stress.yaml
var stressYAML []byte

// builtinProfiles maps profile names to their embedded YAML content.
var builtinProfiles = map[string][]byte{
	"fast":   fastYAML,
	"deep":   deepYAML,
	"stress": stressYAML,
}
