// ABOUTME: Prompt construction for intent routing and grounded answering
// ABOUTME: Personas append a tonal directive to the base rules; context blocks carry [i] markers
package rag

import (
	"fmt"
	"strings"

	"github.com/harper/bookbuddy/internal/models"
)

// Persona selects the tone of generated answers
type Persona string

const (
	PersonaScholar Persona = "scholar"
	PersonaFriend  Persona = "friend"
	PersonaQuizzer Persona = "quizzer"
)

// ParsePersona maps a name to a persona; unknown names get the friend persona
func ParsePersona(name string) Persona {
	switch p := Persona(strings.ToLower(strings.TrimSpace(name))); p {
	case PersonaScholar, PersonaFriend, PersonaQuizzer:
		return p
	}
	return PersonaFriend
}

// MaxExcerptLength caps citation excerpts and quoted passages
const MaxExcerptLength = 250

const baseSystemPrompt = `You are BookBuddy, a helpful and accurate assistant that answers questions based ONLY on the provided book excerpts.

IMPORTANT RULES:
1. Always cite your sources using [1], [2], etc. to reference the provided citations
2. Only answer based on the information in the provided context
3. If you cannot confidently answer using the passages, state your uncertainty and show the closest relevant passage
4. Include the book title and page number when citing
5. Keep quotes under 250 characters to respect copyright
6. Be conversational but accurate

Your goal is to help users understand and engage with their books through accurate, citation-backed answers.`

var personaDirectives = map[Persona]string{
	PersonaScholar: "Adopt a scholarly, analytical tone. Provide detailed explanations with academic rigor. Reference literary techniques, themes, and historical context where relevant.",
	PersonaFriend:  "Adopt a friendly, conversational tone. Explain concepts in an accessible way, as if chatting with a friend about a book you both love. Use analogies and relatable examples.",
	PersonaQuizzer: "Adopt an engaging, educational tone. After answering, pose a thought-provoking follow-up question to deepen understanding. Encourage critical thinking about the text.",
}

const chatSystemPrompt = `You are BookBuddy, a friendly reading companion. The user is making conversation rather than asking about a book's contents.
Reply briefly and warmly. If the user seems to want information from a book, ask them which book or passage they mean so you can look it up.`

const classifierPrompt = `You are a router. Classify the user's query into one of two categories:
1. SEARCH: The user is asking for specific information, facts, summaries, or details that would be found in a book or document.
2. CHAT: The user is greeting, thanking, asking about you, or making small talk that doesn't require looking up external information.

Return ONLY the word "SEARCH" or "CHAT".

Query: "Hello there"
Intent: CHAT

Query: "Who is the main character?"
Intent: SEARCH

Query: "Summarize chapter 1"
Intent: SEARCH

Query: "Thanks for the help"
Intent: CHAT

Query: "What is the theme of this book?"
Intent: SEARCH

Query: %q
Intent:`

func classifyPrompt(query string) string {
	return fmt.Sprintf(classifierPrompt, query)
}

// SystemPrompt composes the base rules, the persona directive, and optional user context
func SystemPrompt(persona Persona, memoryContext string) string {
	directive, ok := personaDirectives[persona]
	if !ok {
		directive = personaDirectives[PersonaFriend]
	}
	return withMemory(baseSystemPrompt+"\n\n"+directive, memoryContext)
}

func chatPrompt(persona Persona, memoryContext string) string {
	directive, ok := personaDirectives[persona]
	if !ok {
		directive = personaDirectives[PersonaFriend]
	}
	return withMemory(chatSystemPrompt+"\n\n"+directive, memoryContext)
}

func withMemory(prompt, memoryContext string) string {
	if strings.TrimSpace(memoryContext) == "" {
		return prompt
	}
	return prompt + "\n\nUser Context: " + memoryContext
}

// BuildContext renders results as numbered context blocks and the parallel citation list
func BuildContext(results []models.SearchResult) (string, []models.Citation) {
	parts := make([]string, len(results))
	citations := make([]models.Citation, len(results))

	for i, r := range results {
		citations[i] = models.Citation{
			DocumentID:    r.DocumentID,
			DocumentTitle: r.DocumentTitle,
			Page:          r.Page,
			Chapter:       r.Chapter,
			Excerpt:       truncateRunes(r.Text, MaxExcerptLength),
		}

		pageInfo := "Unknown Page"
		if r.Page > 0 {
			pageInfo = fmt.Sprintf("Page %d", r.Page)
		}
		chapterInfo := ""
		if r.Chapter != "" {
			chapterInfo = ", Chapter: " + r.Chapter
		}
		parts[i] = fmt.Sprintf("[%d] From %q (%s%s):\n%s\n", i+1, r.DocumentTitle, pageInfo, chapterInfo, r.Text)
	}

	return strings.Join(parts, "\n---\n\n"), citations
}

// structuredPrompt asks for the {answer, confidence, usedCitations} object
func structuredPrompt(query, passages string, citations []models.Citation) string {
	lines := make([]string, len(citations))
	for i, c := range citations {
		page := "N/A"
		if c.Page > 0 {
			page = fmt.Sprintf("%d", c.Page)
		}
		lines[i] = fmt.Sprintf("[%d] %s, Page %s: %q", i+1, c.DocumentTitle, page, truncateRunes(c.Excerpt, 100)+"...")
	}

	var b strings.Builder
	b.WriteString("Context from books:\n")
	b.WriteString(passages)
	b.WriteString("\n\nAvailable Citations:\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(query)
	b.WriteString(`

Please provide a response in the following JSON format:
{
  "answer": "Your detailed answer here, referencing citations as [1], [2], etc.",
  "confidence": 0.85,
  "usedCitations": [1, 2]
}

Confidence should be between 0 and 1, where 1 is completely confident.`)
	return b.String()
}

// HistoryContext renders the trailing n messages as "role: content" lines
func HistoryContext(history []models.Message, n int) string {
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	lines := make([]string, 0, len(history))
	for _, msg := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.Role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
