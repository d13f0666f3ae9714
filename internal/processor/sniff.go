package processor

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"github.com/tdewolff/parse/v2/js"
)

// sniff classifies content by its bytes. Images are identified by signature.
// Plain text carries no signature for CSS or JS, so the grammar the extension
// names is run over the content and the subtype is only reported when the
// content actually parses.
func sniff(content []byte, ext string) (FileType, bool) {
	mtype := mimetype.Detect(content)
	category, subtype, _ := strings.Cut(mediaType(mtype), "/")

	if Category(category) == CategoryImage {
		return FileType{Category: CategoryImage, Subtype: subtype}, true
	}

	if !isText(mtype) || !utf8.Valid(content) {
		return FileType{}, false
	}
	if subtype == "javascript" {
		return FileType{Category: CategoryText, Subtype: "js"}, true
	}

	switch ext {
	case "css":
		if parsesAsCSS(content) {
			return FileType{Category: CategoryText, Subtype: "css"}, true
		}
	case "js":
		if parsesAsJS(content) {
			return FileType{Category: CategoryText, Subtype: "js"}, true
		}
	}
	return FileType{Category: CategoryText, Subtype: "plain"}, true
}

func mediaType(m *mimetype.MIME) string {
	s, _, _ := strings.Cut(m.String(), ";")
	return strings.TrimSpace(s)
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func parsesAsCSS(content []byte) bool {
	p := css.NewParser(parse.NewInputBytes(content), false)
	for {
		gt, _, _ := p.Next()
		if gt == css.ErrorGrammar {
			return p.Err() == io.EOF
		}
	}
}

func parsesAsJS(content []byte) bool {
	_, err := js.Parse(parse.NewInputBytes(content), js.Options{})
	return err == nil
}
