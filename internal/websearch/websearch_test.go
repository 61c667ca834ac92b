package websearch

import "testing"

const samplePage = `
<div class="result results_links results_links_deep web-result">
  <h2 class="result__title">
    <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fcrm&amp;rut=abc">Example <b>CRM</b> Guide</a>
  </h2>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fcrm">A guide to <b>CRM</b> systems &amp; pipelines.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://plain.example/page">Plain link</a>
  <a class="result__snippet" href="https://plain.example/page">Second snippet</a>
</div>`

func TestParse(t *testing.T) {
	results := Parse(samplePage)
	if len(results) != 2 {
		t.Fatalf("want 2 results, got %d", len(results))
	}

	first := results[0]
	if first.Title != "Example CRM Guide" {
		t.Errorf("title = %q", first.Title)
	}
	if first.URL != "https://example.com/crm" {
		t.Errorf("redirect link not unwrapped: %q", first.URL)
	}
	if first.Snippet != "A guide to CRM systems & pipelines." {
		t.Errorf("snippet = %q", first.Snippet)
	}

	if results[1].URL != "https://plain.example/page" {
		t.Errorf("plain url mangled: %q", results[1].URL)
	}
}

func TestParseEmptyPage(t *testing.T) {
	if got := Parse("<html><body>no results</body></html>"); len(got) != 0 {
		t.Fatalf("want no results, got %+v", got)
	}
}
