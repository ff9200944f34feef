package analyze

const systemPrompt = `You are an editor for a game download site. You classify games, pick tags and write SEO metadata.
Respond with a single JSON object and nothing else.`

const userPromptTemplate = `Game: {{.Name}}
Developer: {{.Developers}}
Store genres: {{.Genres}}
Description: {{.Description}}

Pick exactly one category from this list (copy the name verbatim):
{{range .Categories}}- {{.}}
{{end}}
Return JSON shaped like:
{"category": "<category>", "tags": ["<3 to 8 short tags>"], "seo": {"title": "<max 60 chars>", "description": "<max 160 chars>", "keywords": ["<5 keywords>"]}}`
