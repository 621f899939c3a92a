package provider

import (
	"regexp"
	"strings"
)

var yearPattern = regexp.MustCompile(`(\d{4}[-_]?\d{2})`)

// ExtractMetadataFromFilename derives search attributes from an uploaded
// document's filename: issuing company, reporting year and document type.
// The attributes ride on the prepared artifact and are attached to the
// provider-side index so analysts can filter by them.
func ExtractMetadataFromFilename(filename string) map[string]string {
	meta := map[string]string{
		"filename": filename,
		"category": "FinancialReport",
	}

	lower := strings.ToLower(filename)
	switch {
	case strings.Contains(lower, "hdfc"):
		meta["company"] = "HDFC_Bank"
	case strings.Contains(lower, "reliance"):
		meta["company"] = "Reliance"
	case strings.Contains(lower, "hsbc"):
		meta["company"] = "HSBC"
	case strings.Contains(lower, "sbi"):
		meta["company"] = "SBI"
	default:
		meta["company"] = "Unknown"
	}

	if m := yearPattern.FindString(filename); m != "" {
		meta["year"] = m
	} else {
		meta["year"] = "Unknown"
	}

	switch {
	case strings.Contains(lower, "annual") && strings.Contains(lower, "report"):
		meta["document_type"] = "annual_report"
	case strings.Contains(lower, "quarterly"):
		meta["document_type"] = "quarterly_report"
	case strings.Contains(lower, "journey"):
		meta["document_type"] = "process_guide"
	default:
		meta["document_type"] = "financial_document"
	}

	return meta
}
