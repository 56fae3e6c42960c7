package dialects

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlweave/internal/sqlerr"
)

func TestQuoteIdentifier(t *testing.T) {
	pg := &PostgresDialect{}
	my := &MySQLDialect{}
	lite := &SQLiteDialect{}

	tests := []struct {
		name    string
		dialect Dialect
		ident   string
		want    string
	}{
		{"pg bare", pg, "users", "users"},
		{"pg mixed case", pg, "userName", `"userName"`},
		{"pg reserved", pg, "user", `"user"`},
		{"pg dotted", pg, "public.Users", `public."Users"`},
		{"pg embedded quote", pg, `a"b`, `"a""b"`},
		{"pg star", pg, "t.*", "t.*"},
		{"pg leading digit", pg, "1col", `"1col"`},
		{"mysql backtick", my, "Order", "`Order`"},
		{"mysql reserved", my, "order", "`order`"},
		{"mysql bare", my, "created_at", "created_at"},
		{"mysql embedded backtick", my, "a`b", "`a``b`"},
		{"sqlite reserved", lite, "pragma", `"pragma"`},
		{"sqlite bare", lite, "_id", "_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.QuoteIdentifier(tt.ident))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", (&PostgresDialect{}).Placeholder(1))
	assert.Equal(t, "$12", (&PostgresDialect{}).Placeholder(12))
	assert.Equal(t, "?", (&MySQLDialect{}).Placeholder(3))
	assert.Equal(t, "?", (&SQLiteDialect{}).Placeholder(3))
}

func TestMapValue(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 30, 15, 123456789, time.FixedZone("X", 3600))
	huge, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	name := "ann"
	var nilPtr *string
	obj := map[string]any{"a": 1}

	t.Run("postgres", func(t *testing.T) {
		d := &PostgresDialect{}
		tests := []struct {
			in   any
			want any
		}{
			{ts, ts.UTC()},
			{true, true},
			{big.NewInt(7), "7"},
			{huge, "123456789012345678901234567890"},
			{obj, `{"a":1}`},
			{&name, "ann"},
			{nilPtr, nil},
			{nil, nil},
			{[]byte("x"), []byte("x")},
		}
		for _, tt := range tests {
			got, err := d.MapValue(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		}

		arr, err := d.MapValue([]int64{1, 2})
		require.NoError(t, err)
		assert.Equal(t, pq.Array([]int64{1, 2}), arr)
	})

	t.Run("mysql", func(t *testing.T) {
		d := &MySQLDialect{}
		got, err := d.MapValue(ts)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-05 09:30:15.123456", got)

		got, err = d.MapValue([]string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, got)

		got, err = d.MapValue(huge)
		require.NoError(t, err)
		assert.Equal(t, "123456789012345678901234567890", got)
	})

	t.Run("sqlite", func(t *testing.T) {
		d := &SQLiteDialect{}
		got, err := d.MapValue(ts)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-05T09:30:15.123Z", got)

		got, err = d.MapValue(true)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		got, err = d.MapValue(false)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got)

		got, err = d.MapValue(big.NewInt(99))
		require.NoError(t, err)
		assert.Equal(t, int64(99), got)

		got, err = d.MapValue(huge)
		require.NoError(t, err)
		assert.Equal(t, "123456789012345678901234567890", got)

		got, err = d.MapValue(struct {
			N int `json:"n"`
		}{N: 2})
		require.NoError(t, err)
		assert.Equal(t, `{"n":2}`, got)
	})

	t.Run("unencodable", func(t *testing.T) {
		_, err := (&SQLiteDialect{}).MapValue(make(chan int))
		assert.Error(t, err)
	})
}

type (
	role   string
	flag   bool
	userID int32
	score  float32
	blob   []byte
)

func TestMapValue_NamedTypes(t *testing.T) {
	admin := role("admin")
	tests := []struct {
		name   string
		in     any
		want   any
		sqlite any
	}{
		{name: "string", in: role("admin"), want: "admin"},
		{name: "string pointer", in: &admin, want: "admin"},
		{name: "int", in: userID(7), want: int64(7)},
		{name: "duration", in: 2 * time.Second, want: int64(2 * time.Second)},
		{name: "float", in: score(1.5), want: float64(1.5)},
		{name: "bytes", in: blob("xy"), want: []byte("xy")},
		{name: "bool", in: flag(true), want: true, sqlite: int64(1)},
	}
	dialects := []Dialect{&PostgresDialect{}, &MySQLDialect{}, &SQLiteDialect{}}
	for _, tt := range tests {
		for _, d := range dialects {
			t.Run(tt.name+"/"+d.Name(), func(t *testing.T) {
				want := tt.want
				if tt.sqlite != nil && d.Name() == "sqlite" {
					want = tt.sqlite
				}
				got, err := d.MapValue(tt.in)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			})
		}
	}
}

func TestBoolLiteral(t *testing.T) {
	assert.Equal(t, "FALSE", (&PostgresDialect{}).BoolLiteral(false))
	assert.Equal(t, "TRUE", (&MySQLDialect{}).BoolLiteral(true))
	assert.Equal(t, "0", (&SQLiteDialect{}).BoolLiteral(false))
}

func TestTimeoutSQL(t *testing.T) {
	tests := []struct {
		dialect Dialect
		want    string
	}{
		{&PostgresDialect{}, "SET statement_timeout = 1500"},
		{&MySQLDialect{}, "SET SESSION max_execution_time = 1500"},
		{&SQLiteDialect{}, "PRAGMA busy_timeout = 1500"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect.Name(), func(t *testing.T) {
			got, ok := tt.dialect.TimeoutSQL(1500 * time.Millisecond)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)

			_, ok = tt.dialect.TimeoutSQL(0)
			assert.False(t, ok)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"postgres", "postgresql", "pgx", "mysql", "sqlite", "sqlite3"} {
		d, err := r.Get(name)
		require.NoError(t, err, name)
		assert.NotNil(t, d)
	}

	pg := r.MustGet("pgx")
	assert.Equal(t, "postgres", pg.Name())

	_, err := r.Get("oracle")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sqlerr.ErrUnsupportedDialect))
	assert.Equal(t, sqlerr.LayerFormatting, sqlerr.LayerOf(err))

	assert.Panics(t, func() { r.MustGet("oracle") })

	// Built-ins are resolved entries and cannot be replaced.
	assert.False(t, r.Register("mysql", &SQLiteDialect{}))
	assert.True(t, r.Register("cockroach", &PostgresDialect{}))
	assert.Equal(t, "postgres", r.MustGet("cockroach").Name())
}
