package tip

// Context is the caller-supplied hint about why a decision is requested.
type Context int

const (
	ContextUnspecified Context = iota
	ContextReturn
	ContextOuter
	ContextInner
	// ContextOther covers any non-empty hint that is not recognized.
	ContextOther
)

// ParseContext maps a free-form hint onto the closed set. Matching is exact:
// "return" is a return, "Return" or " return" are not.
func ParseContext(s string) Context {
	switch s {
	case "":
		return ContextUnspecified
	case "return":
		return ContextReturn
	case "outer":
		return ContextOuter
	case "inner":
		return ContextInner
	default:
		return ContextOther
	}
}

func (c Context) String() string {
	switch c {
	case ContextUnspecified:
		return ""
	case ContextReturn:
		return "return"
	case ContextOuter:
		return "outer"
	case ContextInner:
		return "inner"
	default:
		return "other"
	}
}

// IsReturn reports whether the visitor just came back to the page.
func (c Context) IsReturn() bool { return c == ContextReturn }
