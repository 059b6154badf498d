package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<div class="card">
			<p class="title">  Amul   Taaza
				Milk </p><span class="price">₹27</span>
		</div>
		<div class="card"><p class="title">Bread</p></div>
	`))
	require.NoError(t, err)

	require.Equal(t, "Amul Taaza Milk", Text(doc.Find("p.title").First()))
	require.Equal(t, "Amul Taaza Milk Bread", Text(doc.Find("p.title")))
	require.Equal(t, "Amul Taaza Milk ₹27", Text(doc.Find("div.card").First()))
	require.Equal(t, "", Text(doc.Find("p.missing")))
}

func TestFragment(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="x"><span>hello</span></div>`))
	require.NoError(t, err)

	require.Equal(t, `<div id="x"><span>hello</span></div>`, Fragment(doc.Find("#x"), 0))
	require.Equal(t, `<div id="x">...`, Fragment(doc.Find("#x"), 12))
}
