package assistant

import "strings"

// PromptTemplate wraps the dataset summary and the user's question.
const PromptTemplate = "Here is the data: {data}\n\nQuestion: {question}\n\nPlease analyze this data and provide a detailed answer. Include relevant statistics and insights."

// BuildPrompt fills PromptTemplate. The question is inserted verbatim.
func BuildPrompt(data, question string) string {
	r := strings.NewReplacer("{data}", data, "{question}", question)
	return r.Replace(PromptTemplate)
}
