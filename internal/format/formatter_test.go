package format

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlweave/internal/compose"
	"github.com/coregx/sqlweave/internal/dialects"
	"github.com/coregx/sqlweave/internal/sqlerr"
	"github.com/coregx/sqlweave/internal/token"
)

var (
	pg   = &dialects.PostgresDialect{}
	my   = &dialects.MySQLDialect{}
	lite = &dialects.SQLiteDialect{}
)

func countPlaceholders(d dialects.Dialect, query string) int {
	if d.Name() != "postgres" {
		return strings.Count(query, "?")
	}
	n := 0
	for i := 1; strings.Contains(query, d.Placeholder(i)); i++ {
		n++
	}
	return n
}

func TestFormat_Placeholders(t *testing.T) {
	q := compose.Q("SELECT * FROM ? WHERE a = ? AND b IN (?) AND ?",
		compose.Ident("users"), 1, []int{2, 3}, compose.In("c", "x"))

	tests := []struct {
		dialect dialects.Dialect
		want    string
	}{
		{pg, "SELECT * FROM users WHERE a = $1 AND b IN ($2, $3) AND c IN ($4)"},
		{my, "SELECT * FROM users WHERE a = ? AND b IN (?, ?) AND c IN (?)"},
		{lite, "SELECT * FROM users WHERE a = ? AND b IN (?, ?) AND c IN (?)"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			res, err := New(tt.dialect).Format(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Query)
			assert.Equal(t, []any{1, 2, 3, "x"}, res.Params)
			assert.Equal(t, len(res.Params), countPlaceholders(tt.dialect, res.Query))
		})
	}
}

func TestFormat_DeepNesting(t *testing.T) {
	inner := compose.Q("score > ? AND ?", 10, compose.In("role", "admin", "owner"))
	mid := compose.Q("(?) OR tag IN (?) OR ?", inner, []string{"x", "y"}, compose.Raw("1 = 0"))
	where := compose.Q("id = ? AND (?)", 7, mid)
	q := compose.Q("SELECT ? FROM ? WHERE ? ORDER BY ? LIMIT ?",
		compose.Ident("id"), compose.Ident("items"), where, compose.Ident("score"), 20)

	tests := []struct {
		dialect dialects.Dialect
		want    string
	}{
		{pg, "SELECT id FROM items WHERE id = $1 AND ((score > $2 AND role IN ($3, $4)) OR tag IN ($5, $6) OR 1 = 0) ORDER BY score LIMIT $7"},
		{lite, "SELECT id FROM items WHERE id = ? AND ((score > ? AND role IN (?, ?)) OR tag IN (?, ?) OR 1 = 0) ORDER BY score LIMIT ?"},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			res, err := New(tt.dialect).Format(q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Query)
			assert.Equal(t, []any{7, 10, "admin", "owner", "x", "y", 20}, res.Params)
			assert.Equal(t, len(res.Params), countPlaceholders(tt.dialect, res.Query))
		})
	}
}

func TestFormat_IdentifierQuoting(t *testing.T) {
	q := compose.Q("SELECT ?, ? FROM ?", compose.Ident("order"), compose.Ident("t.userId"), compose.Ident("public.items"))

	res, err := New(pg).Format(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "order", t."userId" FROM public.items`, res.Query)

	res, err = New(my).Format(q)
	require.NoError(t, err)
	assert.Equal(t, "SELECT `order`, t.`userId` FROM public.items", res.Query)
}

func TestFormat_EmptyIn(t *testing.T) {
	q := compose.Q("SELECT 1 WHERE ?", compose.In("id"))

	for _, tt := range []struct {
		dialect dialects.Dialect
		want    string
	}{
		{pg, "SELECT 1 WHERE FALSE"},
		{my, "SELECT 1 WHERE FALSE"},
		{lite, "SELECT 1 WHERE 0"},
	} {
		res, err := New(tt.dialect).Format(q)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.Query)
		assert.Empty(t, res.Params)
	}
}

func TestFormat_EmptyArrayFails(t *testing.T) {
	_, err := New(lite).Format(compose.Q("id IN (?)", []int{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrEmptyArray))
	assert.Equal(t, sqlerr.LayerFormatting, sqlerr.LayerOf(err))
}

func TestFormat_RawAndValueMarkers(t *testing.T) {
	q := compose.Q("INSERT INTO t (tags, at) VALUES (?, ?)", compose.Value([]string{"a"}), compose.Raw("CURRENT_TIMESTAMP"))

	res, err := New(lite).Format(q)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO t (tags, at) VALUES (?, CURRENT_TIMESTAMP)", res.Query)
	assert.Equal(t, []any{`["a"]`}, res.Params)
}

func TestFormat_PostgresAnyOverride(t *testing.T) {
	values := make([]any, AnyThreshold)
	for i := range values {
		values[i] = i
	}

	res, err := New(pg).Format(compose.Q("SELECT * FROM t WHERE ?", compose.In("id", values...)))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE id = ANY($1)", res.Query)
	require.Len(t, res.Params, 1)
	assert.Equal(t, pq.Array(values), res.Params[0])

	// Below the threshold the regular IN list is kept.
	res, err = New(pg).Format(compose.Q("?", compose.In("id", 1, 2)))
	require.NoError(t, err)
	assert.Equal(t, "id IN ($1, $2)", res.Query)

	// Other dialects never use ANY.
	res, err = New(lite).Format(compose.Q("?", compose.In("id", values...)))
	require.NoError(t, err)
	assert.Len(t, res.Params, AnyThreshold)
}

func TestProcessors_Precedence(t *testing.T) {
	p := NewProcessors()
	custom := func(b *Builder, _ token.Token) error {
		b.WriteString("<custom>")
		return nil
	}
	require.True(t, p.Register(token.KindIn, custom))

	// The postgres override is lazy and must not replace a resolved handler.
	f := New(pg, WithProcessors(p))
	res, err := f.Format(compose.Q("?", compose.In("id", 1)))
	require.NoError(t, err)
	assert.Equal(t, "<custom>", res.Query)

	p2 := NewProcessors()
	require.True(t, p2.RegisterLazy(token.KindRaw, func() (Handler, error) {
		return nil, errors.New("not available")
	}))
	assert.True(t, p2.Register(token.KindRaw, custom), "resolved replaces lazy")
	res, err = New(lite, WithProcessors(p2)).Format(compose.Compose([]string{"", ""}, token.Raw{Text: "x"}))
	require.NoError(t, err)
	// Raw values are inlined while composing, so the processor never sees them.
	assert.Equal(t, "x", res.Query)
}

func TestProcessors_LoadError(t *testing.T) {
	p := NewProcessors()
	p.RegisterLazy(token.KindLiteral, func() (Handler, error) {
		return nil, errors.New("boom")
	})

	_, err := New(lite, WithProcessors(p)).Format(compose.Q("?", 1))
	require.Error(t, err)
	assert.Equal(t, sqlerr.LayerFormatting, sqlerr.LayerOf(err))
	assert.Contains(t, err.Error(), "boom")
}

type bogusToken struct{}

func (bogusToken) Kind() token.Kind { return token.KindInvalid }

func TestFormat_UnknownToken(t *testing.T) {
	_, err := New(lite).Format(compose.Q("?", bogusToken{}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrUnknownToken))
}

func TestDescribe(t *testing.T) {
	q := compose.Q("SELECT * FROM ? WHERE name = ? AND active = ? AND id IN (?) AND deleted IS ?",
		compose.Ident("users"), "O'Brien", true, []int{1, 2}, nil)

	assert.Equal(t,
		"SELECT * FROM users WHERE name = 'O''Brien' AND active = 1 AND id IN (1, 2) AND deleted IS NULL",
		New(lite).Describe(q))
	assert.Equal(t,
		"SELECT * FROM users WHERE name = 'O''Brien' AND active = TRUE AND id IN (1, 2) AND deleted IS NULL",
		New(pg).Describe(q))

	bad := New(lite).Describe(compose.Q("x IN (?)", []int{}))
	assert.Contains(t, bad, "empty array")
}
