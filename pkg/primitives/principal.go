package primitives

// PrincipalID is an opaque actor identifier. There is no hierarchy and
// no inference of one principal from another — a PrincipalID is just a
// string the issuance authority and the Guard agree to mean the same
// actor.
type PrincipalID string

func (p PrincipalID) Empty() bool { return p == "" }
