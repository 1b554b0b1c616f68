package llm

import (
	"fmt"
	"strings"
)

// Verdict tokens the verification prompts ask for. Replies are classified by
// substring, so the tokens are kept short and unambiguous.
const (
	TokenConsistent   = "<是>"
	TokenInconsistent = "否"
)

const markerPrompt = `Extract every citation marker and the passage it belongs to from the text below.
1. Recognise markers of the form [1], [1,2,3] or [1, 2, 3].
2. Write one marker per line in the form: numbers|passage
3. Example: [1, 2, 3]|This is the passage that contains the citation
Do not add any other text.

Text:
%s`

const referencePrompt = `Extract the list of paper titles from the reference section of the text below.
1. Return only titles that appear in the reference section.
2. Leave out authors, venues, years and numbering.
3. Titles must not carry enumeration such as [1] or 1.
4. Plain text, one title per line.

Example output:
Single image super-resolution using deep convolutional networks
Enhanced deep residual networks for single image super-resolution

Text:
%s`

const verifyInstructions = `You are a literature analysis assistant. Decide whether the citing passage agrees with the cited %s.
If the passage matches the topic, method or conclusions of the cited work, output exactly: <是>
Otherwise output: <否: 'your reason here'>
`

// MarkerPrompt asks for numbers|passage lines for one text chunk
func MarkerPrompt(chunk string) string {
	return fmt.Sprintf(markerPrompt, chunk)
}

// ReferencePrompt asks for one reference title per line
func ReferencePrompt(text string) string {
	return fmt.Sprintf(referencePrompt, text)
}

// FullTextPrompt asks whether a passage agrees with the full text of the
// documents it cites
func FullTextPrompt(passage, references string) string {
	var b strings.Builder
	fmt.Fprintf(&b, verifyInstructions, "documents")
	fmt.Fprintf(&b, "\nCiting passage: %s\n\nCited documents:\n%s\n", passage, references)
	return b.String()
}

// MetadataPrompt asks whether a passage agrees with the title and abstract
// of the papers it cites
func MetadataPrompt(passage, metadata string) string {
	var b strings.Builder
	fmt.Fprintf(&b, verifyInstructions, "papers' titles and abstracts")
	fmt.Fprintf(&b, "\nCiting passage: %s\n\nCited paper information:\n%s\n", passage, metadata)
	return b.String()
}
