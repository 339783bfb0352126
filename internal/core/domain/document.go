package domain

// Document is one recognized text segment.
type Document struct {
	Content string `json:"content"`
	Offset  int    `json:"offset"`
}

// RecognizeSpeechResult is the document-list success payload.
type RecognizeSpeechResult struct {
	Document []Document `json:"document"`
}
