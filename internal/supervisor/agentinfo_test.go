package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maestro-builder/backend/pkg/models"
)

const twoAgentYaml = `apiVersion: maestro/v1alpha1
kind: Agent
metadata:
  name: pdf_reader
spec:
  description: Reads PDF documents
---
apiVersion: maestro/v1alpha1
kind: Agent
metadata:
  name: summarizer
spec:
  description: Summarizes extracted text
`

func TestParseAgentInfoStructured(t *testing.T) {
	infos := ParseAgentInfo(twoAgentYaml)
	require.Len(t, infos, 2)
	assert.Equal(t, models.AgentInfo{Name: "pdf_reader", Description: "Reads PDF documents"}, infos[0])
	assert.Equal(t, models.AgentInfo{Name: "summarizer", Description: "Summarizes extracted text"}, infos[1])
}

func TestParseAgentInfoMissingDescription(t *testing.T) {
	doc := "metadata:\n  name: solo\nspec: {}\n"
	infos := ParseAgentInfo(doc)
	require.Len(t, infos, 1)
	assert.Equal(t, "solo", infos[0].Name)
	assert.Equal(t, "", infos[0].Description)
}

func TestParseAgentInfoFlatDocument(t *testing.T) {
	infos := ParseAgentInfo("name: lonely\ndescription: a flat agent\n")
	require.Len(t, infos, 1)
	assert.Equal(t, "lonely", infos[0].Name)
	assert.Equal(t, "a flat agent", infos[0].Description)
}

func TestParseAgentInfoRegexFallbackOnMalformedYaml(t *testing.T) {
	malformed := "name: alpha\ndescription: |\n  does alpha things\nname: beta\ndescription: |\n  does beta things"
	infos := ParseAgentInfo(malformed)
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "does alpha things", infos[0].Description)
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, "does beta things", infos[1].Description)
}

func TestParseAgentInfoEmptyInput(t *testing.T) {
	assert.Empty(t, ParseAgentInfo(""))
	assert.Empty(t, ParseAgentInfo("just prose, nothing else"))
}

func TestBuildWorkflowPrompt(t *testing.T) {
	prompt := BuildWorkflowPrompt([]models.AgentInfo{
		{Name: "pdf_reader", Description: "Reads PDF documents"},
		{Name: "summarizer", Description: "Summarizes extracted text"},
	}, "summarize my PDFs")

	assert.Contains(t, prompt, "agent1: pdf_reader – Reads PDF documents")
	assert.Contains(t, prompt, "agent2: summarizer – Summarizes extracted text")
	assert.Contains(t, prompt, "\nprompt: summarize my PDFs")
}
