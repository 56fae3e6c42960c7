package mysql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/sqlweave/internal/driver"
	"github.com/coregx/sqlweave/internal/pool"
)

func TestNormalizeDSN(t *testing.T) {
	got, err := NormalizeDSN("app:secret@tcp(localhost:3306)/shop")
	require.NoError(t, err)
	assert.Contains(t, got, "parseTime=true")
	assert.Contains(t, got, "tcp(localhost:3306)/shop")

	_, err = NormalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestOpenPool(t *testing.T) {
	ctx := context.Background()
	d := New()
	assert.Equal(t, "mysql", d.Dialect.Name())

	p, err := d.OpenPool(ctx, "app:secret@tcp(localhost:3306)/shop", driver.Options{NoWait: true})
	require.NoError(t, err)
	assert.IsType(t, &pool.Bounded{}, p)
	require.NoError(t, p.Close(ctx))

	_, err = d.OpenPool(ctx, "not a dsn", driver.Options{})
	assert.Error(t, err)
}
