package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressConsecutiveAttr(t *testing.T) {
	records := []Record{
		{Op: OpAttr, XPath: "/div", Name: "style", Value: "a", OldValue: "orig"},
		{Op: OpAttr, XPath: "/div", Name: "style", Value: "b", OldValue: "a"},
		{Op: OpAttr, XPath: "/div", Name: "style", Value: "c", OldValue: "b"},
	}

	got := Compress(records)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Value)
	assert.Equal(t, "orig", got[0].OldValue)
}

func TestCompressConsecutiveText(t *testing.T) {
	records := []Record{
		{Op: OpText, XPath: "/div/text()", Value: "a", OldValue: "orig"},
		{Op: OpText, XPath: "/div/text()", Value: "final", OldValue: "a"},
	}

	got := Compress(records)
	require.Len(t, got, 1)
	assert.Equal(t, "final", got[0].Value)
	assert.Equal(t, "orig", got[0].OldValue)
}

func TestCompressMixedOps(t *testing.T) {
	records := []Record{
		{Op: OpAttr, XPath: "/div", Name: "class", Value: "a", OldValue: "orig"},
		{Op: OpAttr, XPath: "/div", Name: "class", Value: "b"},
		{Op: OpInsert, XPath: "/div/span"},
		{Op: OpInsert, XPath: "/div/span"},
		{Op: OpAttr, XPath: "/div", Name: "id", Value: "x"},
		{Op: OpRemove, XPath: "/div/old"},
	}

	got := Compress(records)
	require.Len(t, got, 5)
	assert.Equal(t, OpAttr, got[0].Op)
	assert.Equal(t, "b", got[0].Value)
	assert.Equal(t, OpInsert, got[1].Op)
	assert.Equal(t, OpInsert, got[2].Op)
	assert.Equal(t, "id", got[3].Name)
	assert.Equal(t, OpRemove, got[4].Op)
}

func TestCompressEdgeCases(t *testing.T) {
	assert.Nil(t, Compress(nil))
	assert.Len(t, Compress([]Record{{Op: OpAttr, XPath: "/div", Name: "x"}}), 1)
}

func TestStructural(t *testing.T) {
	assert.False(t, Structural([]Record{{Op: OpAttr}, {Op: OpText}}))
	assert.True(t, Structural([]Record{{Op: OpAttr}, {Op: OpRemove}}))
	assert.False(t, Structural(nil))
}
