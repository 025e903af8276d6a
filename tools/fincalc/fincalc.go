// Package fincalc provides the deterministic financial computation tools:
// compound interest and investment return analysis.
package fincalc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/finvoke/finvoke"
)

const DefaultCompoundsPerYear = 12

var ErrInvalidInput = errors.New("invalid input")

// CompoundInterest applies A = P(1 + r/n)^(nt). Rate is a percentage
// (5 means 5%); n defaults to monthly compounding.
func CompoundInterest(principal, rate, years float64, compoundsPerYear int) (amount, interest float64, err error) {
	if principal <= 0 {
		return 0, 0, fmt.Errorf("%w: principal must be positive", ErrInvalidInput)
	}

	if years <= 0 {
		return 0, 0, fmt.Errorf("%w: time must be positive", ErrInvalidInput)
	}

	if compoundsPerYear <= 0 {
		compoundsPerYear = DefaultCompoundsPerYear
	}

	r := rate / 100
	n := float64(compoundsPerYear)

	amount = principal * math.Pow(1+r/n, n*years)
	return amount, amount - principal, nil
}

type ReturnMetrics struct {
	TotalReturn    float64
	TotalReturnPct float64
	CAGR           float64
	AvgAnnualPct   float64
}

// AnalyzeReturns computes total return, total return percentage, CAGR and
// average annual return for an investment held over the given period.
func AnalyzeReturns(initial, final, years float64) (ReturnMetrics, error) {
	if initial <= 0 || years <= 0 {
		return ReturnMetrics{}, fmt.Errorf("%w: initial investment and years must be positive", ErrInvalidInput)
	}

	total := final - initial
	totalPct := total / initial * 100

	return ReturnMetrics{
		TotalReturn:    total,
		TotalReturnPct: totalPct,
		CAGR:           (math.Pow(final/initial, 1/years) - 1) * 100,
		AvgAnnualPct:   totalPct / years,
	}, nil
}

func CompoundInterestDescriptor() finvoke.ToolDescriptor {
	return finvoke.ToolDescriptor{
		Name:        finvoke.ToolCalculateCompoundInterest,
		Description: "Calculate compound interest for investments. Useful when users ask about investment growth, savings calculations, or interest calculations.",
		Kind:        finvoke.ToolKindCompute,
		Params: map[string]finvoke.ParamSpec{
			"principal": {
				Type:        finvoke.ParamTypeNumber,
				Description: "The initial investment amount in dollars",
				Required:    true,
			},
			"rate": {
				Type:        finvoke.ParamTypeNumber,
				Description: "The annual interest rate as a percentage (e.g., 5 for 5%)",
				Required:    true,
			},
			"time": {
				Type:        finvoke.ParamTypeNumber,
				Description: "The time period in years",
				Required:    true,
			},
			"compounds_per_year": {
				Type:        finvoke.ParamTypeInteger,
				Description: "Number of times interest is compounded per year (default: 12 for monthly)",
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			principal, _ := finvoke.Number(args, "principal")
			rate, _ := finvoke.Number(args, "rate")
			years, _ := finvoke.Number(args, "time")

			compounds := DefaultCompoundsPerYear
			if n, ok := finvoke.Number(args, "compounds_per_year"); ok {
				compounds = int(n)
			}

			amount, interest, err := CompoundInterest(principal, rate, years, compounds)
			if err != nil {
				return finvoke.ToolResult{}, err
			}

			var sb strings.Builder
			sb.WriteString("Compound Interest Calculation:\n")
			fmt.Fprintf(&sb, "- Principal Amount: $%.2f\n", principal)
			fmt.Fprintf(&sb, "- Annual Interest Rate: %g%%\n", rate)
			fmt.Fprintf(&sb, "- Time Period: %g years\n", years)
			fmt.Fprintf(&sb, "- Compounding Frequency: %d times per year\n\n", compounds)
			fmt.Fprintf(&sb, "Final Amount: $%.2f\n", amount)
			fmt.Fprintf(&sb, "Interest Earned: $%.2f\n", interest)
			fmt.Fprintf(&sb, "Total Return: %.2f%%", interest/principal*100)

			return finvoke.ToolResult{Content: sb.String()}, nil
		},
	}
}

func AnalyzeReturnsDescriptor() finvoke.ToolDescriptor {
	return finvoke.ToolDescriptor{
		Name:        finvoke.ToolAnalyzeInvestmentReturns,
		Description: "Analyze investment returns and calculate metrics like CAGR and total return percentage. Use when users want to understand their investment performance.",
		Kind:        finvoke.ToolKindCompute,
		Params: map[string]finvoke.ParamSpec{
			"initial": {
				Type:        finvoke.ParamTypeNumber,
				Description: "Initial investment amount in dollars",
				Required:    true,
			},
			"final": {
				Type:        finvoke.ParamTypeNumber,
				Description: "Final investment value in dollars",
				Required:    true,
			},
			"years": {
				Type:        finvoke.ParamTypeNumber,
				Description: "Number of years invested",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (finvoke.ToolResult, error) {
			initial, _ := finvoke.Number(args, "initial")
			final, _ := finvoke.Number(args, "final")
			years, _ := finvoke.Number(args, "years")

			metrics, err := AnalyzeReturns(initial, final, years)
			if err != nil {
				return finvoke.ToolResult{}, err
			}

			var sb strings.Builder
			sb.WriteString("Investment Return Analysis:\n")
			fmt.Fprintf(&sb, "- Initial Investment: $%.2f\n", initial)
			fmt.Fprintf(&sb, "- Final Value: $%.2f\n", final)
			fmt.Fprintf(&sb, "- Time Period: %g years\n\n", years)
			fmt.Fprintf(&sb, "Total Return: $%.2f (%.2f%%)\n", metrics.TotalReturn, metrics.TotalReturnPct)
			fmt.Fprintf(&sb, "Compound Annual Growth Rate (CAGR): %.2f%%\n", metrics.CAGR)
			fmt.Fprintf(&sb, "Average Annual Return: %.2f%% per year", metrics.AvgAnnualPct)

			return finvoke.ToolResult{Content: sb.String()}, nil
		},
	}
}
