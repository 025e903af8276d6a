package fincalc

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompoundInterest(t *testing.T) {
	assert := assert.New(t)

	amount, interest, err := CompoundInterest(1000, 5, 10, 12)
	assert.NoError(err)

	expected := 1000 * math.Pow(1+0.05/12, 12*10)
	assert.InDelta(expected, amount, 1e-9)
	assert.InDelta(expected-1000, interest, 1e-9)
}

func TestCompoundInterestAnnual(t *testing.T) {
	assert := assert.New(t)

	// 10% compounded annually doubles in a bit over 7 years.
	amount, _, err := CompoundInterest(100, 10, 1, 1)
	assert.NoError(err)
	assert.InDelta(110, amount, 1e-9)
}

func TestCompoundInterestDefaultsToMonthly(t *testing.T) {
	assert := assert.New(t)

	defaulted, _, err := CompoundInterest(500, 4, 3, 0)
	assert.NoError(err)

	monthly, _, err := CompoundInterest(500, 4, 3, 12)
	assert.NoError(err)

	assert.Equal(monthly, defaulted)
}

func TestCompoundInterestInvalidInput(t *testing.T) {
	assert := assert.New(t)

	_, _, err := CompoundInterest(0, 5, 10, 12)
	assert.ErrorIs(err, ErrInvalidInput)

	_, _, err = CompoundInterest(-100, 5, 10, 12)
	assert.ErrorIs(err, ErrInvalidInput)

	_, _, err = CompoundInterest(100, 5, 0, 12)
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestCompoundInterestZeroRate(t *testing.T) {
	assert := assert.New(t)

	amount, interest, err := CompoundInterest(1000, 0, 5, 12)
	assert.NoError(err)
	assert.InDelta(1000, amount, 1e-9)
	assert.InDelta(0, interest, 1e-9)
}

func TestAnalyzeReturns(t *testing.T) {
	assert := assert.New(t)

	metrics, err := AnalyzeReturns(1000, 2000, 2)
	assert.NoError(err)

	assert.InDelta(1000, metrics.TotalReturn, 1e-9)
	assert.InDelta(100, metrics.TotalReturnPct, 1e-9)
	assert.InDelta((math.Sqrt2-1)*100, metrics.CAGR, 1e-9)
	assert.InDelta(50, metrics.AvgAnnualPct, 1e-9)
}

func TestAnalyzeReturnsLoss(t *testing.T) {
	assert := assert.New(t)

	metrics, err := AnalyzeReturns(1000, 800, 1)
	assert.NoError(err)

	assert.InDelta(-200, metrics.TotalReturn, 1e-9)
	assert.InDelta(-20, metrics.TotalReturnPct, 1e-9)
	assert.InDelta(-20, metrics.CAGR, 1e-9)
}

func TestAnalyzeReturnsInvalidInput(t *testing.T) {
	assert := assert.New(t)

	_, err := AnalyzeReturns(0, 100, 1)
	assert.ErrorIs(err, ErrInvalidInput)

	_, err = AnalyzeReturns(100, 200, 0)
	assert.ErrorIs(err, ErrInvalidInput)
}

func TestCompoundInterestHandler(t *testing.T) {
	assert := assert.New(t)

	desc := CompoundInterestDescriptor()

	result, err := desc.Handler(context.Background(), map[string]any{
		"principal": 5000.0,
		"rate":      5.0,
		"time":      2.0,
	})
	assert.NoError(err)

	expected := 5000 * math.Pow(1+0.05/12, 12*2)
	assert.Contains(result.Content, "Compound Interest Calculation:")
	assert.Contains(result.Content, "Principal Amount: $5000.00")
	assert.Contains(result.Content, "Annual Interest Rate: 5%")
	assert.Contains(result.Content, fmt.Sprintf("Final Amount: $%.2f", expected))
	assert.Contains(result.Content, fmt.Sprintf("Interest Earned: $%.2f", expected-5000))
}

func TestAnalyzeReturnsHandler(t *testing.T) {
	assert := assert.New(t)

	desc := AnalyzeReturnsDescriptor()

	result, err := desc.Handler(context.Background(), map[string]any{
		"initial": 1000.0,
		"final":   2000.0,
		"years":   2.0,
	})
	assert.NoError(err)

	assert.Contains(result.Content, "Investment Return Analysis:")
	assert.Contains(result.Content, "Total Return: $1000.00 (100.00%)")
	assert.Contains(result.Content, "Compound Annual Growth Rate (CAGR): 41.42%")
	assert.Contains(result.Content, "Average Annual Return: 50.00% per year")
}

func TestHandlerRejectsInvalidInput(t *testing.T) {
	assert := assert.New(t)

	desc := CompoundInterestDescriptor()

	_, err := desc.Handler(context.Background(), map[string]any{
		"principal": -1.0,
		"rate":      5.0,
		"time":      2.0,
	})
	assert.ErrorIs(err, ErrInvalidInput)
}
