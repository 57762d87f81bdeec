package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeOptionSequenceViolation(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	_, err := SerializeOption(w, 20, NewUint(URIPort, 5), CheckAll)
	var oerr *OptionError
	require.ErrorAs(t, err, &oerr)
	assert.ErrorIs(t, oerr, ErrOptionSequenceViolation)
}

func TestSerializeOptionRepeatNotAllowed(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	_, err := SerializeOption(w, URIPort, NewUint(URIPort, 5), CheckAll)
	var oerr *OptionError
	require.ErrorAs(t, err, &oerr)
	assert.ErrorIs(t, oerr, ErrOptionRepeatedNotAllowed)
}

func TestSerializeOptionRepeatableOK(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	_, err := SerializeOption(w, URIPath, NewString(URIPath, "a"), CheckAll)
	require.NoError(t, err)
}

func TestSerializeOptionLengthOutOfRange(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)
	_, err := SerializeOption(w, 0, NewOpaque(ETag, nil), CheckAll)
	var oerr *OptionError
	require.ErrorAs(t, err, &oerr)
	assert.ErrorIs(t, oerr, ErrOptionLengthOutOfRange)
}

func TestSerializeOptionBufferSpace(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWriter(buf)
	_, err := SerializeOption(w, 0, NewString(URIPath, "abcdef"), CheckAll)
	assert.ErrorIs(t, err, ErrBufferSpace)
}

func TestOptionSetStableOrdering(t *testing.T) {
	var s OptionSet
	s.Add(NewString(URIPath, "first"))
	s.Add(NewUint(ContentFormat, 0))
	s.Add(NewString(URIPath, "second-inserted-at-same-number"))

	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, URIPath, all[0].Number)
	assert.Equal(t, "first", string(all[0].Value))
	assert.Equal(t, URIPath, all[1].Number)
	assert.Equal(t, "second-inserted-at-same-number", string(all[1].Value))
	assert.Equal(t, ContentFormat, all[2].Number)
}

func TestFixedOptionListInsertOrder(t *testing.T) {
	nodes := []OptionNode{
		{Option: NewUint(MaxAge, 5)},
		{Option: NewString(URIPath, "b")},
		{Option: NewString(URIPath, "a")},
	}
	var l FixedOptionList
	l.Insert(&nodes[0])
	l.Insert(&nodes[1])
	l.Insert(&nodes[2])

	assert.Equal(t, 3, l.Count())

	var numbers []uint16
	l.Iterate(func(n *OptionNode) bool {
		numbers = append(numbers, n.Option.Number)
		return true
	})
	assert.Equal(t, []uint16{URIPath, URIPath, MaxAge}, numbers)
}

func TestDerivedOptionProperties(t *testing.T) {
	assert.True(t, IsCritical(IfMatch))
	assert.False(t, IsCritical(ETag))
	assert.True(t, IsUnsafeToForward(URIHost))
	assert.False(t, IsUnsafeToForward(ContentFormat))
}

func TestBlockPackAndParse(t *testing.T) {
	b, err := MakeBlock(5, true, 64)
	require.NoError(t, err)
	packed, err := b.Pack()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x5a), packed)

	got, err := ParseBlock(0x5a)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.Num)
	assert.True(t, got.More)
	assert.Equal(t, 64, got.Size())
}

func TestBlockRejectsInvalidSZX(t *testing.T) {
	_, err := MakeBlock(0, false, 33)
	assert.ErrorIs(t, err, ErrInvalidBlockSZX)

	_, err = ParseBlock(0x07) // szx=7, out of range
	assert.ErrorIs(t, err, ErrInvalidBlockSZX)
}
