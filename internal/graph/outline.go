package graph

import (
	"fmt"
	"io"
	"strings"
)

// outlineLinks are the relations a file declares; their inverses are derived.
var outlineLinks = []struct {
	name string
	t    LinkType
}{
	{"bases", LinkBase},
	{"children", LinkChild},
	{"related", LinkRelated},
}

// WriteOutline prints n in outline form:
//
//	list {
//	  title: "Linked lists"
//	  bases: { sequence }
//	}
func WriteOutline(w io.Writer, n *Node) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s {\n", n.ID)
	if n.Title != "" {
		fmt.Fprintf(&b, "  title: %q\n", n.Title)
	}
	for _, l := range outlineLinks {
		ids, err := n.Links(l.t)
		if err != nil {
			return err
		}
		if ids.Len() > 0 {
			fmt.Fprintf(&b, "  %s: { %s }\n", l.name, strings.Join(ids.Sorted(), " "))
		}
	}
	b.WriteString("}\n\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteOutline prints every node of the snapshot in id order.
func (s *Snapshot) WriteOutline(w io.Writer) error {
	var err error
	s.Each(func(n *Node) bool {
		err = WriteOutline(w, n)
		return err == nil
	})
	return err
}
