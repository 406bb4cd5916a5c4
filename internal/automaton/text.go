package automaton

type prefix struct {
	text  string
	exact bool
}

// Prefix accepts every key that starts with text. The empty prefix accepts
// every key.
func Prefix(text string) Automaton {
	return &prefix{text: text}
}

// Exact accepts only text itself.
func Exact(text string) Automaton {
	return &prefix{text: text, exact: true}
}

// States 0..len(text) count the bytes matched so far; -1 is dead.
func (p *prefix) Start() int { return 0 }

func (p *prefix) IsMatch(s int) bool { return s == len(p.text) }

func (p *prefix) CanMatch(s int) bool { return s >= 0 }

func (p *prefix) WillAlwaysMatch(s int) bool { return !p.exact && s == len(p.text) }

func (p *prefix) Accept(s int, b byte) int {
	switch {
	case s < 0:
		return -1
	case s == len(p.text):
		if p.exact {
			return -1
		}
		return s
	case p.text[s] == b:
		return s + 1
	}
	return -1
}

type subsequence struct {
	text string
}

// Subsequence accepts keys containing the bytes of text in order, not
// necessarily contiguously: "tst" matches "test".
func Subsequence(text string) Automaton {
	return &subsequence{text: text}
}

func (q *subsequence) Start() int { return 0 }

func (q *subsequence) IsMatch(s int) bool { return s == len(q.text) }

func (q *subsequence) CanMatch(int) bool { return true }

func (q *subsequence) WillAlwaysMatch(s int) bool { return s == len(q.text) }

func (q *subsequence) Accept(s int, b byte) int {
	if s < len(q.text) && q.text[s] == b {
		return s + 1
	}
	return s
}
