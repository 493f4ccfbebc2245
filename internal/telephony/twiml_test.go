package telephony

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []node     `xml:",any"`
}

func parseTwiML(t *testing.T, body string) node {
	t.Helper()
	var root node
	require.NoError(t, xml.Unmarshal([]byte(body), &root), body)
	require.Equal(t, "Response", root.XMLName.Local)
	return root
}

func (n node) verbs() []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.XMLName.Local)
	}
	return out
}

func (n node) verb(name string) node {
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return node{}
}

func (n node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n node) text() string {
	return strings.TrimSpace(n.Text)
}
