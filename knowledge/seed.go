package knowledge

// Seed returns the bundled fintech support corpus. The service binary
// ingests it on first start when the index is empty, so a fresh deployment
// can answer policy questions before any operator-provided content arrives.
func Seed() []PassageInput {
	return []PassageInput{
		{
			Title:   "Account Withdrawal Procedure",
			Content: "To withdraw funds from your investment account: 1) Log in to your account, 2) Navigate to 'Withdraw Funds', 3) Select the account and amount, 4) Choose your bank account, 5) Confirm the transaction. Withdrawals are processed within 2-3 business days. Minimum withdrawal is $100.",
		},
		{
			Title:   "Savings Account Interest Rates",
			Content: "Our high-yield savings account currently offers 4.5% APY (Annual Percentage Yield) on all balances. Interest is compounded daily and paid monthly. There are no minimum balance requirements and no monthly maintenance fees.",
		},
		{
			Title:   "Investment Account Types",
			Content: "We offer three main investment account types: 1) Individual Brokerage Account - for general investing with flexible withdrawals, 2) Traditional IRA - tax-deferred retirement account, 3) Roth IRA - after-tax retirement account with tax-free growth. Each has different contribution limits and tax implications.",
		},
		{
			Title:   "Account Security and Two-Factor Authentication",
			Content: "Protect your account with two-factor authentication (2FA). Enable it in Settings > Security. We support SMS codes, authenticator apps (Google Authenticator, Authy), and biometric authentication. 2FA adds an extra layer of security beyond your password.",
		},
		{
			Title:   "Trading Fees and Commission Structure",
			Content: "Stock and ETF trades are commission-free. Options trades are $0.65 per contract. Mutual fund trades may have fees depending on the fund. Cryptocurrency trading has a spread of 0.5-2% depending on market conditions. There are no account maintenance or inactivity fees.",
		},
		{
			Title:   "Account Funding Methods",
			Content: "Fund your account via: 1) ACH bank transfer (free, 3-5 business days), 2) Wire transfer ($25 fee, same day), 3) Check deposit (mobile check deposit available, 5-7 days), 4) Account transfer from another brokerage (ACATS transfer, 5-10 days). Minimum initial deposit is $500.",
		},
		{
			Title:   "Tax Documents and Reporting",
			Content: "Tax documents (1099 forms) are available by February 15th each year. Access them in Account > Tax Documents. We report all taxable events to the IRS including dividends, interest, and capital gains. You can download CSV files of all transactions for your records.",
		},
		{
			Title:   "Customer Support Hours and Contact",
			Content: "Customer support is available Monday-Friday 8am-8pm ET, Saturday 9am-5pm ET. Contact us via: phone (1-800-555-0123), email (support@fintechco.com), live chat (on website), or this AI assistant 24/7. For urgent account security issues, call our 24/7 security line at 1-800-555-9999.",
		},
		{
			Title:   "Dividend Reinvestment Program (DRIP)",
			Content: "Automatically reinvest dividends to purchase additional shares at no cost. Enable DRIP in your account settings for individual securities or all holdings. Fractional shares are supported. You can disable DRIP anytime to receive cash dividends instead.",
		},
		{
			Title:   "Account Closure Process",
			Content: "To close your account: 1) Sell or transfer all positions, 2) Withdraw remaining cash balance, 3) Submit closure request via Secure Message Center or call support, 4) Confirm closure. No fees for account closure. Keep records for tax purposes. Reopening requires a new application.",
		},
	}
}
