package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// markdown renders model answers. Raw HTML in the answer stays escaped.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

const pageTemplateText = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>War of the Worlds Q&amp;A</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; padding: 3rem 1rem; }
  .card { max-width: 760px; margin: 0 auto; background: #1e293b; border-radius: 12px; padding: 2.5rem; box-shadow: 0 25px 50px rgba(0,0,0,0.4); }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  form.ask { display: flex; gap: 0.75rem; }
  input[type=text] { flex: 1; background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 0.75rem 1rem; color: #e2e8f0; font-size: 1rem; }
  input[type=text]:focus { outline: none; border-color: #38bdf8; }
  button { background: #38bdf8; color: #0f172a; border: none; border-radius: 8px; padding: 0.75rem 1.25rem; font-size: 1rem; font-weight: 600; cursor: pointer; }
  button:hover { background: #7dd3fc; }
  button.secondary { background: transparent; color: #94a3b8; border: 1px solid #334155; font-weight: 400; }
  button.secondary:hover { color: #e2e8f0; border-color: #64748b; }
  .error { background: #7f1d1d; border: 1px solid #b91c1c; border-radius: 8px; padding: 0.75rem 1rem; margin-bottom: 1.5rem; color: #fecaca; }
  .entry { border-top: 1px solid #334155; padding: 1.25rem 0; }
  .question { color: #a5b4fc; font-weight: 600; margin-bottom: 0.5rem; }
  .answer { line-height: 1.6; }
  .answer p { margin-bottom: 0.75rem; }
  .answer ul, .answer ol { margin: 0 0 0.75rem 1.25rem; }
  .answer code { font-family: "SF Mono", "Fira Code", Menlo, monospace; font-size: 0.9em; }
  details { margin-top: 0.75rem; }
  summary { color: #64748b; cursor: pointer; font-size: 0.85rem; }
  .source { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 0.75rem 1rem; margin-top: 0.5rem; font-size: 0.85rem; line-height: 1.5; color: #cbd5e1; }
  .source-meta { color: #64748b; font-size: 0.75rem; margin-top: 0.35rem; }
  .empty { color: #64748b; padding: 1.25rem 0; border-top: 1px solid #334155; }
</style>
</head>
<body>
<div class="card">
  <h1>War of the Worlds Q&amp;A</h1>
  <p class="subtitle">Ask questions about <em>{{.BookTitle}}</em> by {{.BookAuthor}}. Answers are grounded in retrieved passages from the book.</p>

  {{if .Error}}<div class="error">{{.Error}}</div>{{end}}

  <div class="section">
    <form class="ask" method="post" action="/ask">
      <input type="text" name="question" placeholder="Who narrates the story?" autofocus autocomplete="off">
      <button type="submit">Ask</button>
    </form>
  </div>

  <div class="section">
    <div class="section-title">History</div>
    {{range .Entries}}
    <div class="entry">
      <div class="question">{{.Question}}</div>
      <div class="answer">{{renderAnswer .Answer}}</div>
      {{if .Sources}}
      <details>
        <summary>{{len .Sources}} source passage{{if gt (len .Sources) 1}}s{{end}}</summary>
        {{range .Sources}}
        <div class="source">{{.Preview}}<div class="source-meta">page {{.Page}} &middot; similarity {{printf "%.3f" .Similarity}}</div></div>
        {{end}}
      </details>
      {{end}}
    </div>
    {{else}}
    <div class="empty">No questions asked yet.</div>
    {{end}}
  </div>

  <form method="post" action="/rebuild">
    <button type="submit" class="secondary">Rebuild index</button>
  </form>
</div>
</body>
</html>`

var pageTemplate = template.Must(
	template.New("page").Funcs(template.FuncMap{
		"renderAnswer": renderAnswer,
	}).Parse(pageTemplateText),
)

type pageData struct {
	BookTitle  string
	BookAuthor string
	Error      string
	Entries    []Entry
}

func (h *Handler) renderPage(w http.ResponseWriter, status int, errMsg string) {
	h.mu.Lock()
	entries := make([]Entry, len(h.history))
	copy(entries, h.history)
	h.mu.Unlock()

	data := pageData{
		BookTitle:  h.bookTitle,
		BookAuthor: h.bookAuthor,
		Error:      errMsg,
		Entries:    entries,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("Page render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// renderAnswer converts a markdown answer to HTML for the history view.
func renderAnswer(answer string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(answer), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(answer) + "</p>")
	}
	return template.HTML(buf.String())
}
