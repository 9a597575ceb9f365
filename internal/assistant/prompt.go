package assistant

import (
	"strings"
)

const outputContract = `Respond with a single JSON object and nothing else:
{"title": "<headline>", "article": "<HTML fragment using <h2>, <p>, <ul>, <blockquote>>"}`

func sourceBlock(req Request) string {
	var sb strings.Builder
	sb.WriteString("Source post:\n\"\"\"\n")
	sb.WriteString(strings.TrimSpace(req.Text))
	sb.WriteString("\n\"\"\"\n")
	if len(req.MediaURLs) > 0 {
		sb.WriteString("Attached media:\n")
		for _, u := range req.MediaURLs {
			sb.WriteString("- ")
			sb.WriteString(u)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func frenchPrompt(req Request) string {
	return "Rédige en français un article de blog complet et factuel à partir de la publication ci-dessous. " +
		"Contextualise le sujet, structure le texte avec des intertitres et reste fidèle à la source.\n\n" +
		sourceBlock(req) + "\n" + outputContract
}

// englishPrompt 构造英文 prompt；distinct 为真时要求换角度写作，
// 不得照搬法文版本
func englishPrompt(req Request, distinct bool) string {
	var sb strings.Builder
	sb.WriteString("Write a complete, factual English blog article based on the post below. ")
	sb.WriteString("Give background, structure it with subheadings and stay faithful to the source.\n")
	if distinct {
		sb.WriteString("A separate French article is written from the same post. Do NOT translate or mirror it: ")
		sb.WriteString("choose a different angle, a different title and different section headings, ")
		sb.WriteString("and write for an international English-speaking audience.\n")
	}
	sb.WriteString("\n")
	sb.WriteString(sourceBlock(req))
	sb.WriteString("\n")
	sb.WriteString(outputContract)
	return sb.String()
}
