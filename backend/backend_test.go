package backend

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOrBase64(t *testing.T) {
	assert.Equal(t, "hello", DecodeOrBase64([]byte("hello")))
	assert.Equal(t, "//79", DecodeOrBase64([]byte{0xff, 0xfe, 0xfd}))
	assert.Equal(t, "", DecodeOrBase64(nil))
}

func TestParseRevMetaNullDates(t *testing.T) {
	meta, err := ParseRevMeta(json.RawMessage(
		`{"id":"d012a7190fc1fd72ed48911e77ca97ba4521bccd","directory":"9eb62ef7dd283f7385e7d31af6344d9feedd25de","parents":[],"date":null,"committer_date":null}`))
	require.NoError(t, err)
	assert.Nil(t, meta.Date)
	assert.Nil(t, meta.CommitterDate)
	assert.Empty(t, meta.Parents)
}

func TestParseDirListingKeepsOptionalFields(t *testing.T) {
	listing, err := ParseDirListing(json.RawMessage(
		`[{"name":"README","type":"file","target":"669ac7c32292798644b21dbb5a0dc657125f444d","perms":33188,"length":727,"status":"visible"},
		  {"name":"arch","type":"dir","target":"cf12c1ce4de958ab4ddcb008fe89118b82a3c7b7","perms":16384}]`))
	require.NoError(t, err)
	require.Len(t, listing, 2)
	require.NotNil(t, listing[0].Length)
	assert.Equal(t, int64(727), *listing[0].Length)
	assert.Nil(t, listing[1].Length)
}

func TestParseWrongShapeFails(t *testing.T) {
	_, err := ParseContentMeta(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
	_, err = ParseDirListing(json.RawMessage(`{"not":"a list"}`))
	assert.Error(t, err)
	_, err = ParseSnpBranches(json.RawMessage(`[]`))
	assert.Error(t, err)
}
