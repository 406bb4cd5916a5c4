package automaton

type pair struct{ a, b int }

type union struct {
	a, b   Automaton
	states interner[pair]
}

// Union accepts keys accepted by a or by b.
func Union(a, b Automaton) Automaton {
	return &union{a: a, b: b}
}

func (u *union) Start() int {
	return u.states.id(pair{u.a.Start(), u.b.Start()})
}

func (u *union) IsMatch(s int) bool {
	p := u.states.get(s)
	return u.a.IsMatch(p.a) || u.b.IsMatch(p.b)
}

func (u *union) CanMatch(s int) bool {
	p := u.states.get(s)
	return u.a.CanMatch(p.a) || u.b.CanMatch(p.b)
}

func (u *union) WillAlwaysMatch(s int) bool {
	p := u.states.get(s)
	return u.a.WillAlwaysMatch(p.a) || u.b.WillAlwaysMatch(p.b)
}

func (u *union) Accept(s int, c byte) int {
	p := u.states.get(s)
	return u.states.id(pair{u.a.Accept(p.a, c), u.b.Accept(p.b, c)})
}

type intersection struct {
	a, b   Automaton
	states interner[pair]
}

// Intersection accepts keys accepted by both a and b.
func Intersection(a, b Automaton) Automaton {
	return &intersection{a: a, b: b}
}

func (x *intersection) Start() int {
	return x.states.id(pair{x.a.Start(), x.b.Start()})
}

func (x *intersection) IsMatch(s int) bool {
	p := x.states.get(s)
	return x.a.IsMatch(p.a) && x.b.IsMatch(p.b)
}

func (x *intersection) CanMatch(s int) bool {
	p := x.states.get(s)
	return x.a.CanMatch(p.a) && x.b.CanMatch(p.b)
}

func (x *intersection) WillAlwaysMatch(s int) bool {
	p := x.states.get(s)
	return x.a.WillAlwaysMatch(p.a) && x.b.WillAlwaysMatch(p.b)
}

func (x *intersection) Accept(s int, c byte) int {
	p := x.states.get(s)
	return x.states.id(pair{x.a.Accept(p.a, c), x.b.Accept(p.b, c)})
}

type startsWithState struct {
	inner int
	done  bool
}

type startsWith struct {
	a      Automaton
	states interner[startsWithState]
}

// StartsWith accepts every key that has a prefix accepted by a. Applied to
// an edit distance acceptor it also matches longer keys with a close prefix.
func StartsWith(a Automaton) Automaton {
	return &startsWith{a: a}
}

func (w *startsWith) Start() int {
	s := w.a.Start()
	return w.states.id(startsWithState{inner: s, done: w.a.IsMatch(s)})
}

func (w *startsWith) IsMatch(s int) bool {
	return w.states.get(s).done
}

func (w *startsWith) CanMatch(s int) bool {
	st := w.states.get(s)
	return st.done || w.a.CanMatch(st.inner)
}

func (w *startsWith) WillAlwaysMatch(s int) bool {
	return w.states.get(s).done
}

func (w *startsWith) Accept(s int, c byte) int {
	st := w.states.get(s)
	if st.done {
		return s
	}
	next := w.a.Accept(st.inner, c)
	return w.states.id(startsWithState{inner: next, done: w.a.IsMatch(next)})
}

type complement struct {
	a Automaton
}

// Complement accepts exactly the keys a rejects.
func Complement(a Automaton) Automaton {
	return &complement{a: a}
}

func (c *complement) Start() int { return c.a.Start() }

func (c *complement) IsMatch(s int) bool { return !c.a.IsMatch(s) }

func (c *complement) CanMatch(s int) bool { return !c.a.WillAlwaysMatch(s) }

func (c *complement) WillAlwaysMatch(s int) bool { return !c.a.CanMatch(s) }

func (c *complement) Accept(s int, b byte) int { return c.a.Accept(s, b) }
