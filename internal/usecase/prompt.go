package usecase

import "strings"

const promptInstructions = `You are an assistant that answers questions using only the topic related to the question.

Instructions:
1. Ignore information from other topics or documents.
2. Go through every step or point mentioned in the context,
   explaining what it means and how to apply it.
3. Do not over-summarise; give complete explanations.
4. Answer clearly and in detail, covering only the main topic.

`

// BuildPrompt assembles the generator prompt: fixed instructions, then the
// question, then the retrieved context, then an answer cue.
func BuildPrompt(question, context string) string {
	var b strings.Builder
	b.Grow(len(promptInstructions) + len(question) + len(context) + 32)
	b.WriteString(promptInstructions)
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
