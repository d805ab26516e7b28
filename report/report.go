// Package report renders the downloadable financial summary PDF.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/Sanidhya49/Invested/goals"
)

const (
	inch      = 72.0
	maxGoals  = 5
	pageWidth = 612.0
	pageH     = 792.0
)

type rgb struct{ r, g, b int }

var (
	navy   = rgb{0x1A, 0x23, 0x7E}
	indigo = rgb{0x3F, 0x51, 0xB5}
	black  = rgb{0, 0, 0}
)

// page draws with the origin at the bottom-left, one inch margins.
type page struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
	y   float64
}

func (p *page) font(style string, size float64, c rgb) {
	p.pdf.SetFont("Helvetica", style, size)
	p.pdf.SetTextColor(c.r, c.g, c.b)
}

func (p *page) text(x float64, s string) {
	p.pdf.Text(x, pageH-p.y, p.tr(s))
}

func (p *page) heading(title string) {
	p.font("B", 16, indigo)
	p.text(inch, title)
	p.pdf.Line(inch, pageH-(p.y-0.1*inch), pageWidth-inch, pageH-(p.y-0.1*inch))
	p.font("", 12, black)
}

// SummaryPDF renders the net worth and goals summary.
func SummaryPDF(netWorth map[string]any, userGoals []goals.Goal, now time.Time) ([]byte, error) {
	return render(netWorth, userGoals, now, true)
}

func render(netWorth map[string]any, userGoals []goals.Goal, now time.Time, compress bool) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetDrawColor(indigo.r, indigo.g, indigo.b)
	pdf.AddPage()
	p := &page{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	p.y = pageH - inch
	p.font("B", 24, navy)
	p.text(inch, "INVESTED - Comprehensive Financial Summary")
	p.y = pageH - 1.3*inch
	p.font("", 14, black)
	p.text(inch, "Your Complete Financial Intelligence Report")
	p.y = pageH - 1.5*inch
	p.font("", 12, black)
	p.text(inch, "Generated on: "+now.Format("January 02, 2006 at 03:04 PM"))

	p.y = pageH - 2*inch
	p.heading("Executive Summary")
	p.y -= 0.3 * inch
	p.text(inch, "INVESTED is your AI-powered financial companion that helps you:")
	p.y -= 0.05 * inch
	for _, b := range []string{
		"Track your net worth and financial health score",
		"Get AI-powered insights from Oracle, Guardian, Catalyst, and Strategist",
		"Set and monitor financial goals",
		"Analyze investments and portfolio performance",
		"Detect anomalies and security threats",
		"Receive personalized growth recommendations",
	} {
		p.y -= 0.2 * inch
		p.text(1.2*inch, "• "+b)
	}

	p.y -= 0.4 * inch
	p.heading("Net Worth Overview")
	p.y -= 0.3 * inch
	if resp, ok := netWorth["netWorthResponse"].(map[string]any); ok {
		p.text(inch, "Total Net Worth: "+rupees(units(resp, "totalNetWorthValue")))
		p.y -= 0.4 * inch
		p.font("B", 14, black)
		p.text(inch, "Asset Breakdown:")
		p.font("", 12, black)
		for _, a := range []struct{ key, field, label string }{
			{"bankAccounts", "totalValue", "Bank Accounts"},
			{"investments", "totalValue", "Investments"},
			{"epfDetails", "totalBalance", "EPF"},
		} {
			section, ok := resp[a.key].(map[string]any)
			if !ok {
				continue
			}
			p.y -= 0.25 * inch
			p.text(1.2*inch, "• "+a.label+": "+rupees(units(section, a.field)))
		}
	}

	p.y -= 0.4 * inch
	p.heading("Financial Goals Progress")
	if len(userGoals) > 0 {
		p.y -= 0.3 * inch
		if len(userGoals) > maxGoals {
			userGoals = userGoals[:maxGoals]
		}
		for _, g := range userGoals {
			if p.y < 1.5*inch {
				pdf.AddPage()
				p.y = pageH - inch
				p.font("B", 16, indigo)
				p.text(inch, "Financial Goals Progress (Continued)")
				p.y -= 0.3 * inch
				p.font("", 12, black)
			}
			title := g.Title
			if title == "" {
				title = "Goal"
			}
			p.text(inch, fmt.Sprintf("• %s: %s / %s (%.1f%%)", title,
				rupees(decimal.NewFromFloat(g.CurrentAmount)),
				rupees(decimal.NewFromFloat(g.TargetAmount)),
				progress(g)))
			p.y -= 0.25 * inch
		}
	}

	p.y -= 0.3 * inch
	p.heading("AI-Powered Features Available")
	p.y -= 0.3 * inch
	for i, f := range []string{
		"Oracle: AI-powered financial advice and tax planning",
		"Guardian: Anomaly detection and security monitoring",
		"Catalyst: Growth insights and investment opportunities",
		"Strategist: Portfolio analysis and stock recommendations",
	} {
		if i > 0 {
			p.y -= 0.2 * inch
		}
		p.text(inch, f)
	}

	p.y -= 0.6 * inch
	p.font("B", 12, navy)
	p.text(inch, "INVESTED - Let AI Talk to Your Money")
	p.y -= 0.2 * inch
	p.font("", 10, black)
	p.text(inch, "Your comprehensive financial intelligence platform")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render summary pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func progress(g goals.Goal) float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	return g.CurrentAmount / g.TargetAmount * 100
}

// units reads m[key].units, a provider money value. Missing or malformed
// values read as zero.
func units(m map[string]any, key string) decimal.Decimal {
	money, _ := m[key].(map[string]any)
	switch v := money["units"].(type) {
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	}
	return decimal.Zero
}

// rupees formats d with thousands separators. The core fonts have no rupee
// glyph.
func rupees(d decimal.Decimal) string {
	s := d.StringFixed(0)
	if !d.Equal(d.Truncate(0)) {
		s = d.StringFixed(2)
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String()
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return "Rs. " + out
}
