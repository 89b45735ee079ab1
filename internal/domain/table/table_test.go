package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ExplicitHeader(t *testing.T) {
	text := "1,10,admin,QUJD,Domain admin,1\r\n\r\n2,11,svc,REVG,Service,0\n"

	tbl, err := Parse(text, ExportHeader)
	require.NoError(t, err)

	assert.Equal(t, ExportHeader, tbl.Header())
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "2"}, tbl.ColumnValues(ColID))
	assert.Equal(t, "REVG", tbl.Row(1).Value(ColPassword))
}

func TestParse_FirstRowHeader(t *testing.T) {
	tbl, err := Parse("ID,Username\n7,root\n", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "Username"}, tbl.Header())
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "root", tbl.Row(0).Value(ColUsername))
}

func TestParse_QuotesAreLiteral(t *testing.T) {
	tbl, err := Parse(`1,2,"user,x",pw,desc,1`, ExportHeader)
	require.NoError(t, err)

	row := tbl.Row(0)
	assert.Equal(t, `"user`, row.Value(ColUsername))
	assert.Equal(t, `x"`, row.Value(ColPassword))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		header []string
	}{
		{name: "empty text with header", text: "", header: ExportHeader},
		{name: "only blank lines", text: "\r\n\n\n", header: ExportHeader},
		{name: "empty text first-row header", text: "", header: nil},
		{name: "header only", text: "ID,USN\n", header: nil},
		{name: "zero-length explicit header", text: "1,2\n", header: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, tt.header)
			require.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestRow_GetAbsent(t *testing.T) {
	tbl, err := Parse("1,2,user\n,3,other,,desc,0\n", ExportHeader)
	require.NoError(t, err)

	_, ok := tbl.Row(0).Get(ColPassword)
	assert.False(t, ok, "short row has no Password")

	_, ok = tbl.Row(1).Get(ColID)
	assert.False(t, ok, "empty ID is absent")

	_, ok = tbl.Row(1).Get("NoSuchColumn")
	assert.False(t, ok)

	v, ok := tbl.Row(1).Get(ColDescription)
	assert.True(t, ok)
	assert.Equal(t, "desc", v)
}

func TestUniqueAndIdentities(t *testing.T) {
	tbl, err := Parse("a,1\nb,2\na,3\n,4\n", []string{"ID", "USN"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", ""}, tbl.Unique(ColID))
	assert.Equal(t, 3, tbl.UniqueCount(ColID))
	assert.True(t, tbl.HasIdentities(ColID))

	empty, err := Parse(",1\n,2\n", []string{"ID", "USN"})
	require.NoError(t, err)
	assert.Equal(t, 1, empty.UniqueCount(ColID))
	assert.False(t, empty.HasIdentities(ColID), "first unique ID is empty")

	missing, err := Parse("1\n", []string{"USN"})
	require.NoError(t, err)
	assert.False(t, missing.HasIdentities(ColID))
}

func TestSerialize_RoundTrip(t *testing.T) {
	tbl := New([]string{ColID, ColUSN, ColUsername, ColPlaintext})
	tbl.AppendRow("1", "10", "admin", `pa"ss`)
	tbl.AppendRow("2", "11", "", "")
	tbl.AppendRow("3")

	first := tbl.Serialize()
	assert.Equal(t, "ID,USN,Username,Plaintext\n1,10,admin,pa\"ss\n2,11,,\n3\n", first)

	reparsed, err := Parse(first, nil)
	require.NoError(t, err)
	assert.Equal(t, first, reparsed.Serialize())
}

func TestSerialize_QuotesCommas(t *testing.T) {
	tbl := New([]string{ColID, ColPlaintext})
	tbl.AppendRow("1", `a,"b"`)
	tbl.AppendRow("2", "line1\nline2")

	assert.Equal(t, "ID,Plaintext\n1,\"a,\"\"b\"\"\"\n2,\"line1\nline2\"\n", tbl.Serialize())
}

func TestAppendRow_Copies(t *testing.T) {
	tbl := New([]string{ColID})
	vals := []string{"x"}
	tbl.AppendRow(vals...)
	vals[0] = "y"

	assert.Equal(t, "x", tbl.Row(0).Value(ColID))
}

func TestStripNUL(t *testing.T) {
	assert.Equal(t, "p\xffa", StripNUL("p\x00\xff\x00a"))
	assert.Equal(t, "", StripNUL("\x00\x00"))
}
