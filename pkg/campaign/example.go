package campaign

import (
	_ "embed"
)

//go:embed example/rotwood_blight.yaml
var exampleYAML []byte

// Example returns a fresh copy of the bundled sample campaign.
func Example() *Content {
	c, err := DecodeYAML(exampleYAML)
	if err != nil {
		panic("campaign: bundled example is invalid: " + err.Error())
	}
	return c
}

// ExampleYAML returns the bundled sample campaign as authored.
func ExampleYAML() []byte {
	out := make([]byte, len(exampleYAML))
	copy(out, exampleYAML)
	return out
}
