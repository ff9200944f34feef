package rewrite

import "pressroom/internal/pipeline"

const systemPrompt = `You are a copywriter for a game site. Write fluent, original English prose.
Never copy sentences verbatim from the source text. Do not use markdown headings.`

var styleTemplates = map[string]string{
	pipeline.StyleResourceSite: `Rewrite the description of "{{.Name}}" for a game download page.
Open with a one-sentence hook, then cover gameplay, features and what makes it stand out.
Use three to five short paragraphs separated by blank lines.

Source description:
{{.Description}}`,
	pipeline.StyleNews: `Write a short news item announcing "{{.Name}}".
Lead with what is new, then summarise the game in two or three paragraphs separated by blank lines.

Source description:
{{.Description}}`,
	pipeline.StyleReview: `Write a brief first-impressions review of "{{.Name}}" based only on the description below.
Cover strengths and who the game suits, in three or four paragraphs separated by blank lines.

Source description:
{{.Description}}`,
}
