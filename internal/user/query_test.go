package user

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

func TestParseQuery_Defaults(t *testing.T) {
	q, err := ParseQuery("", "", "", "")
	require.NoError(t, err)
	require.Equal(t, Query{Page: 0, Size: DefaultPageSize, SortBy: "id"}, q)
	require.Equal(t, "page:0:10:id:asc", q.Key())
	require.Equal(t, 0, q.Offset())
}

func TestParseQuery_Values(t *testing.T) {
	q, err := ParseQuery("3", "20", "Email", "DESC")
	require.NoError(t, err)
	require.Equal(t, Query{Page: 3, Size: 20, SortBy: "email", Desc: true}, q)
	require.Equal(t, 60, q.Offset())
	require.Equal(t, "email", q.Column())
	require.Equal(t, "page:3:20:email:desc", q.Key())
}

func TestParseQuery_Invalid(t *testing.T) {
	cases := [][4]string{
		{"-1", "", "", ""},
		{"x", "", "", ""},
		{"", "0", "", ""},
		{"", "101", "", ""},
		{"", "", "password", ""},
		{"", "", "", "sideways"},
		{strconv.Itoa(MaxPage + 1), "", "", ""},
		{"9223372036854775807", "2", "", ""},
	}
	for _, c := range cases {
		_, err := ParseQuery(c[0], c[1], c[2], c[3])
		require.True(t, xerrors.IsKind(err, xerrors.KindInvalidArgument), "input %v: %v", c, err)
	}
}

func TestParseQuery_LastPageOffsetFits(t *testing.T) {
	q, err := ParseQuery(strconv.Itoa(MaxPage), strconv.Itoa(MaxPageSize), "", "")
	require.NoError(t, err)
	require.Positive(t, q.Offset())
	require.NoError(t, q.Validate())
}

func TestQuery_Validate(t *testing.T) {
	for _, q := range []Query{
		{Page: -1, Size: 10},
		{Page: MaxPage + 1, Size: 10},
		{Page: MaxPage * 2, Size: 2},
		{Page: 0, Size: 0},
		{Page: 0, Size: MaxPageSize + 1},
	} {
		require.True(t, xerrors.IsKind(q.Validate(), xerrors.KindInvalidArgument), "%+v", q)
	}
	require.NoError(t, Query{Page: 3, Size: 20}.Validate())
}

func TestQuery_ColumnFallsBackToID(t *testing.T) {
	require.Equal(t, "id", Query{SortBy: "name; drop table users"}.Column())
}

func TestValidEmail(t *testing.T) {
	for _, ok := range []string{"ann@example.com", "a.b+c@sub.example.org"} {
		require.True(t, validEmail(ok), ok)
	}
	for _, bad := range []string{"ann", "ann@", "@example.com", "Ann <ann@example.com>", "ann@example.com "} {
		require.False(t, validEmail(bad), bad)
	}
}
