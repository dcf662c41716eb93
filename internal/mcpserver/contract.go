package mcpserver

// PageFormatContract describes the canonical document format that LLM
// consumers should follow when creating or updating wiki pages.
const PageFormatContract = `# Fable Page Format Contract

Every document body stored in Fable follows this structure.

## Structure

` + "```" + `markdown
Body text in standard Markdown.

Use [[Title]] to cross-reference another document by its title.
Use [[Title|alias]] for display text that differs from the target.
` + "```" + `

## Rules

1. **Links** use double brackets: ` + "`" + `[[Character Name]]` + "`" + `. The target is
   matched against document titles case-insensitively, with runs of
   whitespace collapsed. Wiki page slugs also match.
2. **Wiki pages win.** When a chapter and a wiki page share a title, the
   link resolves to the wiki page.
3. **Unresolved links are fine.** A link whose target does not exist yet
   is simply not indexed; it starts resolving once the target document
   is created and links are rebuilt.
4. **An unterminated ` + "`" + `[[` + "`" + ` is plain text**, not a link.
5. **Tags** on wiki pages are lowercase, kebab-case (e.g. ` + "`" + `protagonist` + "`" + `,
   ` + "`" + `northern-kingdom` + "`" + `).
6. **Encoding** is UTF-8.

## Example

` + "```" + `markdown
# Rhea

Rhea grew up in [[Silverport]] before the events of
[[Chapter One|the opening chapter]]. Her rivalry with
[[Captain Aldous Vane]] drives the second act.
` + "```" + `
`
