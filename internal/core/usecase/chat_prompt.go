package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

const (
	docsSiteRoot     = "https://elasticpath.dev"
	maxHistoryTurns  = 6
	maxPromptSnippet = 4000
)

var modePersona = map[domain.RetrievalMode]string{
	domain.ModeStandard: `You are knowledgeable about Elastic Path products: Commerce Manager,
Product Experience Manager (PXM), Cart and Checkout, Promotions, Composer,
Payments, Subscriptions and Studio.`,
	domain.ModeEPCC: `You are an Elastic Path Composable Commerce (EPCC) specialist. Answer
with the EPCC APIs and Commerce Manager in mind.`,
	domain.ModeEPSM: `You are an Elastic Path Self-Managed (EPSM) specialist. Answer for the
self-hosted commerce platform only.`,
	domain.ModeRFP: `You help answer RFP and security questionnaires about Elastic Path.
Prefer previously approved RFP answers, then product documentation, then
website content, and say which kind of source you used.`,
}

func buildChatPrompt(
	mode domain.RetrievalMode,
	history []domain.ChatMessage,
	question string,
	sources []domain.RetrievedDocument,
	scrapingTargets string,
) string {
	var b strings.Builder
	b.WriteString(modePersona[mode])
	b.WriteString("\n\nAnswer the question only from the context below.\n")
	b.WriteString(`If no relevant information is found, respond "` + insufficientContextReply + `"` + "\n")
	b.WriteString("After the answer, list links to the most relevant documents.\n")
	if scrapingTargets != "" {
		b.WriteString("\n")
		b.WriteString(scrapingTargets)
		b.WriteString("\n")
	}

	if turns := recentTurns(history); len(turns) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, msg := range turns {
			b.WriteString(msg.Role)
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nQuestion:\n")
	b.WriteString(question)
	b.WriteString("\n\nContext:\n")
	for idx, doc := range sources {
		text := doc.PageContent
		if len(text) > maxPromptSnippet {
			text = text[:maxPromptSnippet]
		}
		b.WriteString(fmt.Sprintf(
			"[%d] collection=%s link=%s\n%s\n\n",
			idx+1,
			doc.Metadata.SourceCollection,
			DocumentLink(doc.Metadata),
			text,
		))
	}
	return b.String()
}

// recentTurns drops the final user question and system messages.
func recentTurns(history []domain.ChatMessage) []domain.ChatMessage {
	turns := make([]domain.ChatMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role == domain.RoleSystem {
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) > 0 && turns[len(turns)-1].Role == domain.RoleUser {
		turns = turns[:len(turns)-1]
	}
	if len(turns) > maxHistoryTurns {
		turns = turns[len(turns)-maxHistoryTurns:]
	}
	return turns
}

// DocumentLink resolves a public link for a stored document. Markdown sources
// map onto the docs site: the /data_md/ prefix and .md suffix are dropped and
// spaces become hyphens.
func DocumentLink(meta domain.DocumentMetadata) string {
	if meta.URL != "" {
		return meta.URL
	}
	source := strings.TrimSpace(meta.Source)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return source
	}
	if source == "" {
		return ""
	}
	source = strings.TrimPrefix(source, "/data_md/")
	source = strings.TrimPrefix(source, "data_md/")
	source = strings.TrimSuffix(source, ".md")
	source = strings.ReplaceAll(source, " ", "-")
	return docsSiteRoot + "/" + strings.TrimPrefix(source, "/")
}
