package catalog

import "strings"

// entityReplacer decodes the HTML entities the catalog leaves in text
// fields. Replacement happens in a single pass, so already-decoded text
// comes back unchanged and DecodeText is idempotent.
var entityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&amp;", "&",
	"&#039;", "'",
	"&lt;", "<",
	"&gt;", ">",
	"&apos;", "'",
	"&nbsp;", " ",
)

// DecodeText decodes catalog HTML entities in s.
func DecodeText(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}
