package provider

import "strings"

// Analysis focus values accepted by the insight prompts.
const (
	FocusInvestment = "investment"
	FocusFinancial  = "financial"
	FocusRisk       = "risk"
	FocusGeneral    = "general"
)

var summaryPrompts = map[string]string{
	"general":   "Provide a comprehensive summary of this document, highlighting key points and main themes.",
	"executive": "Create an executive summary focusing on key decisions, outcomes, and strategic implications.",
	"technical": "Provide a technical summary emphasizing methodologies, processes, and detailed findings.",
}

var insightPrompts = map[string]string{
	FocusInvestment: strings.TrimSpace(`
Analyze this investment document and provide:
1. Risk assessment (low, medium, high) with justification
2. Key financial metrics and projections
3. Market opportunity and competitive landscape
4. Management team and execution capability
5. Potential red flags or concerns
6. Investment recommendation with rationale`),
	FocusFinancial: strings.TrimSpace(`
Perform financial analysis of this document focusing on:
1. Revenue trends and growth patterns
2. Profitability metrics and margins
3. Cash flow analysis
4. Debt and leverage ratios
5. Key performance indicators
6. Financial health assessment`),
	FocusRisk: strings.TrimSpace(`
Conduct risk analysis focusing on:
1. Business risks and market factors
2. Financial risks and leverage
3. Operational risks
4. Regulatory and compliance risks
5. Risk mitigation strategies
6. Overall risk rating and explanation`),
	FocusGeneral: strings.TrimSpace(`
Analyze this document comprehensively:
1. Document type and purpose
2. Key information and findings
3. Important data points and metrics
4. Conclusions and recommendations
5. Areas requiring attention`),
}

// SummaryPrompt returns the instruction for the summarize step. Unknown
// summary types fall back to the general prompt.
func SummaryPrompt(summaryType string) string {
	if p, ok := summaryPrompts[summaryType]; ok {
		return p
	}
	return summaryPrompts["general"]
}

// InsightPrompt returns the instruction for the extract-insights step.
// Unknown focus values fall back to the general prompt.
func InsightPrompt(focus string) string {
	if p, ok := insightPrompts[focus]; ok {
		return p
	}
	return insightPrompts[FocusGeneral]
}

// InsightSystemPrompt is the analyst persona plus the structured-output
// contract shared by both providers.
const InsightSystemPrompt = "You are a senior investment analyst with expertise in due diligence and financial analysis. " +
	"Provide actionable insights based on the documents. " +
	"Return ONLY JSON with the fields: insights (string), classification (string), risk_level (one of low, medium, high)."
