package knowledge

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/evoagent/core/pkg/errs"
)

const frontMatterDelim = "---"

// render serializes a front-matter + body markdown file.
func render(fm FrontMatter, body string) ([]byte, error) {
	yamlBytes, err := yaml.Marshal(fm)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "marshal front matter", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontMatterDelim + "\n")
	buf.Write(yamlBytes)
	buf.WriteString(frontMatterDelim + "\n")
	buf.WriteString(strings.TrimLeft(body, "\n"))
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// parse splits a markdown file into its front matter and body. A file
// without a leading delimiter is treated as body-only with zero-value
// front matter, rather than failing.
func parse(data []byte) (FrontMatter, string, error) {
	text := string(data)
	if !strings.HasPrefix(text, frontMatterDelim) {
		return FrontMatter{}, text, nil
	}
	rest := strings.TrimPrefix(text, frontMatterDelim+"\n")
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end == -1 {
		return FrontMatter{}, text, nil
	}
	yamlPart := rest[:end]
	body := strings.TrimPrefix(rest[end+len(frontMatterDelim)+1:], "\n")

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(yamlPart), &fm); err != nil {
		return FrontMatter{}, "", errs.Wrap(errs.Validation, "parse knowledge front matter", err)
	}
	return fm, body, nil
}
