package message

// OptionSet is the dynamic (shape 1 of spec §4.2) option container: a
// sorted-by-number, stable-on-ties slice. It is the default container
// used by Message; constrained builds should use FixedOptionList instead.
type OptionSet struct {
	opts []Option
}

// Add inserts opt, splicing it at the stable lower bound for its number
// so that equal-number options keep insertion order.
func (s *OptionSet) Add(opt Option) {
	i := 0
	for i < len(s.opts) && s.opts[i].Number <= opt.Number {
		i++
	}
	s.opts = append(s.opts, Option{})
	copy(s.opts[i+1:], s.opts[i:])
	s.opts[i] = opt
}

// Count returns the number of options held.
func (s *OptionSet) Count() int {
	return len(s.opts)
}

// Size returns the number of bytes the set would occupy once serialized.
func (s *OptionSet) Size() int {
	total := 0
	prev := uint16(0)
	for _, o := range s.opts {
		total += optionWireSize(prev, o)
		prev = o.Number
	}
	return total
}

// All returns the options in ascending-number, insertion-stable order.
// The returned slice aliases internal storage and must not be mutated.
func (s *OptionSet) All() []Option {
	return s.opts
}

// Get returns the first option with the given number.
func (s *OptionSet) Get(number uint16) (Option, bool) {
	for _, o := range s.opts {
		if o.Number == number {
			return o, true
		}
	}
	return Option{}, false
}

// GetAll returns every option with the given number, in insertion order.
func (s *OptionSet) GetAll(number uint16) []Option {
	var out []Option
	for _, o := range s.opts {
		if o.Number == number {
			out = append(out, o)
		}
	}
	return out
}

// Remove deletes every option with the given number.
func (s *OptionSet) Remove(number uint16) {
	kept := s.opts[:0]
	for _, o := range s.opts {
		if o.Number != number {
			kept = append(kept, o)
		}
	}
	s.opts = kept
}

func optionWireSize(prevNumber uint16, o Option) int {
	size := 1
	delta := int(o.Number) - int(prevNumber)
	size += extensionSize(delta)
	size += extensionSize(len(o.Value))
	size += len(o.Value)
	return size
}

func extensionSize(v int) int {
	switch {
	case v >= extWordAddend:
		return 2
	case v >= extByteAddend:
		return 1
	default:
		return 0
	}
}

// OptionNode is a caller-owned list node for FixedOptionList. Callers
// allocate a slice of nodes once (e.g. a stack array) and hand individual
// nodes to Insert; the list never allocates.
type OptionNode struct {
	Option Option
	next   *OptionNode
}

// FixedOptionList is the no-allocation (shape 3 of spec §4.2) option
// container: an intrusive singly-linked list over caller-owned nodes.
// This is the container the constrained-device profile must use.
type FixedOptionList struct {
	head *OptionNode
}

// Insert splices node into the list at the stable lower bound for its
// option's number. node must not already belong to a list.
func (l *FixedOptionList) Insert(node *OptionNode) {
	node.next = nil
	if l.head == nil || node.Option.Number < l.head.Option.Number {
		node.next = l.head
		l.head = node
		return
	}
	cur := l.head
	for cur.next != nil && cur.next.Option.Number <= node.Option.Number {
		cur = cur.next
	}
	node.next = cur.next
	cur.next = node
}

// Count walks the list, returning its length. O(n).
func (l *FixedOptionList) Count() int {
	n := 0
	for cur := l.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Size walks the list, summing serialized option sizes. O(n).
func (l *FixedOptionList) Size() int {
	total := 0
	prev := uint16(0)
	for cur := l.head; cur != nil; cur = cur.next {
		total += optionWireSize(prev, cur.Option)
		prev = cur.Option.Number
	}
	return total
}

// Iterate calls fn for each node in ascending-number order, stopping
// early if fn returns false.
func (l *FixedOptionList) Iterate(fn func(*OptionNode) bool) {
	for cur := l.head; cur != nil; cur = cur.next {
		if !fn(cur) {
			return
		}
	}
}

// Head returns the first node, or nil if the list is empty.
func (l *FixedOptionList) Head() *OptionNode {
	return l.head
}

// Reset empties the list. Nodes are not reused or freed; that is the
// caller's responsibility since it owns their storage.
func (l *FixedOptionList) Reset() {
	l.head = nil
}
