package api

// Header is the metadata block at the top of a content file.
// Relation fields hold the raw, whitespace-separated id lists exactly as
// written; splitting them into ids is the loader's job.
type Header struct {
	Title    string `json:"title,omitempty"`
	Bases    string `json:"bases,omitempty"`
	Children string `json:"children,omitempty"`
	Related  string `json:"related,omitempty"`
}

// Element is one node of a parsed content tree.
type Element struct {
	// Cmd is the command name (e.g. "img"). Empty for plain text.
	Cmd string `json:"cmd,omitempty"`
	// Arg is the inline text following the command name.
	// For resolved images this is the content hash.
	Arg string `json:"arg,omitempty"`
	// Text holds paragraph text for plain elements.
	Text string `json:"text,omitempty"`
	// Error carries a human readable diagnostic when the element could not
	// be resolved (e.g. an unreadable image).
	Error string `json:"error,omitempty"`
	// Children are the nested elements of a command block.
	Children []*Element `json:"children,omitempty"`
}

// IsCommand reports whether e is a command element with the given name.
func (e *Element) IsCommand(name string) bool {
	return e != nil && e.Cmd == name
}

// Link is a relation target expanded with its title, so consumers never
// need a second lookup.
type Link struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// NodeView is the serialized form of a topic.
type NodeView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Source      string     `json:"source,omitempty"`
	Placeholder bool       `json:"placeholder,omitempty"`
	Content     []*Element `json:"content,omitempty"`
	Bases       []Link     `json:"bases"`
	Derived     []Link     `json:"derived"`
	Parents     []Link     `json:"parents"`
	Children    []Link     `json:"children"`
	Related     []Link     `json:"related"`
}
