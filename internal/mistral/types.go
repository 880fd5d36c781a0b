package mistral

// Message is a single chat message in a completion request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest carries the parameters of one chat completion call.
// Model, Temperature and MaxTokens are optional; the client fills in
// its configured defaults when they are zero.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for one completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletion is the result of a chat completion call
type ChatCompletion struct {
	Model   string
	Content string
	Usage   Usage
}

// Model describes one model offered by the provider
type Model struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

// Wire formats for the Mistral REST API.

type apiChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type apiChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type apiModelsResponse struct {
	Data []Model `json:"data"`
}
