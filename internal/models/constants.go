package models

const (
	DefaultChunkSize    = 200 // words
	DefaultChunkOverlap = 20  // words
	DefaultDimension    = 1024

	PassagePrefix = "passage: "
	QueryPrefix   = "query: "
)

var (
	AskSystemPrompt = `You are a helpful study assistant. Answer the question using the provided context from the document. If the context does not contain the answer, say so.`

	AskPromptTemplate = `Context:
[Text from Page Number: %d]
%s
[Context End]
%s`
)
