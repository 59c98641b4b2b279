package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractYAMLFencedBlock(t *testing.T) {
	input := "Here is your config:\n```yaml\nfoo: 1\nbar: 2\n```\nLet me know if it helps."
	assert.Equal(t, "foo: 1\nbar: 2", ExtractYAML(input))
}

func TestExtractYAMLFencedBlockSurroundedByProse(t *testing.T) {
	assert.Equal(t, "foo: 1", ExtractYAML("pre\n```yaml\nfoo: 1\n```\npost"))
}

func TestExtractYAMLUnclosedYamlFence(t *testing.T) {
	input := "```yaml\nfoo: 1\nbar: 2"
	assert.Equal(t, "foo: 1\nbar: 2", ExtractYAML(input))
}

func TestExtractYAMLBareFence(t *testing.T) {
	input := "output:\n```\nkind: Agent\n```\ndone"
	assert.Equal(t, "kind: Agent", ExtractYAML(input))
}

func TestExtractYAMLApiVersionAnchor(t *testing.T) {
	input := "The document follows.\napiVersion: v1\nkind: Agent\n\nHope that helps!"
	assert.Equal(t, "apiVersion: v1\nkind: Agent", ExtractYAML(input))
}

func TestExtractYAMLApiVersionRunsToEnd(t *testing.T) {
	input := "apiVersion: v1\nkind: Agent\nmetadata:\n  name: summarizer"
	assert.Equal(t, input, ExtractYAML(input))
}

func TestExtractYAMLFallbackTrimsInput(t *testing.T) {
	assert.Equal(t, "just some text", ExtractYAML("  just some text \n"))
}

func TestExtractYAMLEmptyInput(t *testing.T) {
	assert.Equal(t, "", ExtractYAML(""))
	assert.Equal(t, "", ExtractYAML("   \n\t"))
}

func TestExtractYAMLIdempotent(t *testing.T) {
	inputs := []string{
		"pre\n```yaml\nfoo: 1\n```\npost",
		"apiVersion: v1\nkind: Agent\n\ntrailing",
		"plain text with no markers",
	}
	for _, input := range inputs {
		once := ExtractYAML(input)
		assert.Equal(t, once, ExtractYAML(once))
	}
}
