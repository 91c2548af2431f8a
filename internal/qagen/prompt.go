package qagen

import (
	"fmt"

	"github.com/dgallion1/synthtune/internal/llm"
)

// Sampling parameters shared by question and answer generation.
const (
	temperature = 0.2
	topP        = 0.7
	maxTokens   = 1024
)

const systemPrompt = "You write training data for an assistant that answers employees' questions " +
	"about their company handbook. Use only the handbook text you are given."

// QuestionRequest builds the prompt asking for n questions about text.
func QuestionRequest(text string, n int) llm.Request {
	return llm.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf("Given the following text, generate %d questions:\n\n%s\n\n"+
			"The questions should be separated by newline characters.", n, text),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}
}

// ResponseRequest builds the prompt asking for two answers to question.
func ResponseRequest(question, text string) llm.Request {
	return llm.Request{
		System: systemPrompt,
		Prompt: fmt.Sprintf("Based on the following text, generate 2 responses to the question: %s\n\n%s\n\n"+
			"The responses should be in the format:\nRESPONSE A: [Response A text]\nRESPONSE B: [Response B text]",
			question, text),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}
}
