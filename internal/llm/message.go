// Package llm provides a vendor-neutral abstraction over LLM backends.
//
// Callers assemble a Request from role-tagged messages whose content is an
// ordered list of text and image blocks, then dispatch it through the
// Provider interface. Each adapter owns the translation to its vendor's
// wire format and the classification of vendor errors; no vendor type
// leaks past this package.
package llm

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates message content blocks.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
)

// ContentBlock is one element of a message. Text blocks carry Text;
// image blocks carry the raw bytes and their MIME type. Images are
// forwarded in arrival order without transcoding.
type ContentBlock struct {
	Type     BlockType
	Text     string
	Data     []byte
	MimeType string
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock builds an image content block.
func ImageBlock(data []byte, mimeType string) ContentBlock {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return ContentBlock{Type: BlockImage, Data: data, MimeType: mimeType}
}

// Message is a role-tagged sequence of content blocks.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// UserMessage builds a user message from content blocks.
func UserMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// Request is a single generation request. SystemPrompt may be empty.
type Request struct {
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}
