package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	period := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "INV-2024-00007", Format(InvoiceConfig, period, 7))
	assert.Equal(t, "RCPT-2024-000042", Format(ReceiptConfig, period, 42))
	assert.Equal(t, "X-00003", Format(Config{Prefix: "X"}, period, 3))
}

func TestKey(t *testing.T) {
	period := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "INV_2024", Key(InvoiceConfig, period))
	assert.Equal(t, "M_2024_03", Key(Config{Prefix: "M", ResetPeriod: "month"}, period))
	assert.Equal(t, "N", Key(Config{Prefix: "N", ResetPeriod: "never"}, period))
}

func TestMemoryGenerator(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGenerator()
	y2024 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	y2025 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := g.GetNextNumber(ctx, ReceiptConfig, nil, y2024)
	require.NoError(t, err)
	second, err := g.GetNextNumber(ctx, ReceiptConfig, nil, y2024)
	require.NoError(t, err)
	nextYear, err := g.GetNextNumber(ctx, ReceiptConfig, nil, y2025)
	require.NoError(t, err)

	assert.Equal(t, "RCPT-2024-000001", first)
	assert.Equal(t, "RCPT-2024-000002", second)
	assert.Equal(t, "RCPT-2025-000001", nextYear)

	require.NoError(t, g.SetNextNumber(ctx, ReceiptConfig, y2024, 100))
	n, err := g.GetNextNumber(ctx, ReceiptConfig, nil, y2024)
	require.NoError(t, err)
	assert.Equal(t, "RCPT-2024-000101", n)
}
