// Package pdf renders report shapes as PDF tables.
//
// Thai text needs a UTF-8 TrueType font (for example Sarabun) registered
// through Options.FontPath. Without one the core Helvetica font is used and
// characters outside cp1252 are replaced.
package pdf

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/warp/leave-calendar/calendar"
	"github.com/warp/leave-calendar/report"
)

const fontFamily = "thai"

type Options struct {
	// FontPath is a UTF-8 TTF file; empty falls back to Helvetica.
	FontPath string
}

// Renderer turns reports into PDF documents. It is safe for concurrent use;
// every call builds its own document.
type Renderer struct {
	opts Options
}

func New(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (r *Renderer) Summary(s report.SummaryReport) ([]byte, error) {
	doc := r.newDoc("Leave Summary", "สรุปภาพรวมการลา")
	doc.pairs([][2]string{
		{"Total bookings", strconv.Itoa(s.TotalBookings)},
		{"Total days", strconv.Itoa(s.TotalDays)},
		{"Users", strconv.Itoa(s.TotalUsers)},
		{"Average days / booking", formatAverage(s.AverageDaysPerBooking)},
		{"Domestic (bookings / days)", fmt.Sprintf("%d / %d", s.DomesticBookings, s.DomesticDays)},
		{"International (bookings / days)", fmt.Sprintf("%d / %d", s.InternationalBookings, s.InternationalDays)},
	})
	if s.MostPopularDay != nil {
		doc.pairs([][2]string{{"Most popular day", fmt.Sprintf("%s (%d)", s.MostPopularDay.DateDisplay, s.MostPopularDay.BookingCount)}})
	}
	if s.MostActiveUser != nil {
		doc.pairs([][2]string{{"Most active user", fmt.Sprintf("%s (%d days)", s.MostActiveUser.UserName, s.MostActiveUser.TotalDays)}})
	}
	return doc.bytes()
}

func (r *Renderer) TimePeriods(rows []report.TimePeriodReport, period report.PeriodType) ([]byte, error) {
	title := "Leave by Month"
	if period == report.ByYear {
		title = "Leave by Year"
	}
	doc := r.newDoc(title, "รายงานตามช่วงเวลา")
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.Period,
			strconv.Itoa(row.TotalBookings),
			strconv.Itoa(row.TotalDays),
			fmt.Sprintf("%d / %d", row.DomesticBookings, row.DomesticDays),
			fmt.Sprintf("%d / %d", row.InternationalBookings, row.InternationalDays),
		})
	}
	doc.table([]string{"Period", "Bookings", "Days", "Domestic", "International"},
		[]float64{34, 30, 30, 48, 48}, table)
	return doc.bytes()
}

func (r *Renderer) Categories(rows []report.CategoryReport) ([]byte, error) {
	doc := r.newDoc("Leave by Category", "รายงานตามประเภทการลา")
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.CategoryLabel,
			strconv.Itoa(row.TotalBookings),
			strconv.Itoa(row.TotalDays),
			formatAverage(row.AverageDays),
			strconv.Itoa(row.UniqueUsers),
		})
	}
	doc.table([]string{"Category", "Bookings", "Days", "Average", "Users"},
		[]float64{50, 35, 35, 35, 35}, table)
	return doc.bytes()
}

func (r *Renderer) Users(rows []report.UserReport) ([]byte, error) {
	doc := r.newDoc("Leave by User", "รายงานตามผู้ใช้")
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.UserName,
			strconv.Itoa(row.TotalBookings),
			strconv.Itoa(row.TotalDays),
			fmt.Sprintf("%d / %d", row.DomesticBookings, row.DomesticDays),
			fmt.Sprintf("%d / %d", row.InternationalBookings, row.InternationalDays),
		})
	}
	doc.table([]string{"Name", "Bookings", "Days", "Domestic", "International"},
		[]float64{60, 25, 25, 40, 40}, table)
	return doc.bytes()
}

func (r *Renderer) DayStats(rows []report.DayStatsReport) ([]byte, error) {
	doc := r.newDoc("Busiest Days", "สถิติวันที่มีการลามากที่สุด")
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			row.DateDisplay,
			strconv.Itoa(row.BookingCount),
			strings.Join(row.Users, ", "),
		})
	}
	doc.table([]string{"Date", "Bookings", "Users"}, []float64{50, 25, 115}, table)
	return doc.bytes()
}

// Monthly lists every day of the month with the names on leave.
func (r *Renderer) Monthly(year, month int, rows []report.MonthlyDayReport) ([]byte, error) {
	heading := report.MonthTitle(calendar.NewDate(year, time.Month(month), 1))
	doc := r.newDoc(fmt.Sprintf("Monthly Leave %04d-%02d", year, month), heading)
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		names := make([]string, 0, len(row.Bookings))
		for _, b := range row.Bookings {
			names = append(names, fmt.Sprintf("%s (%s)", b.UserName, b.CategoryLabel))
		}
		table = append(table, []string{
			row.DayOfWeek + " " + row.DateDisplay,
			strconv.Itoa(len(row.Bookings)),
			strings.Join(names, ", "),
		})
	}
	doc.table([]string{"Date", "Count", "On leave"}, []float64{55, 20, 115}, table)
	return doc.bytes()
}

// =============================================================================
// LAYOUT HELPERS
// =============================================================================

type document struct {
	pdf    *gofpdf.Fpdf
	family string
	tr     func(string) string
}

func (r *Renderer) newDoc(title, subtitle string) *document {
	fontDir, fontFile := "", ""
	if r.opts.FontPath != "" {
		fontDir, fontFile = filepath.Split(r.opts.FontPath)
	}
	p := gofpdf.New("P", "mm", "A4", fontDir)
	p.SetTitle(title, true)
	p.SetAutoPageBreak(true, 15)

	doc := &document{pdf: p, family: "Helvetica", tr: p.UnicodeTranslatorFromDescriptor("")}
	if r.opts.FontPath != "" {
		// gofpdf joins font files onto the document's font directory.
		p.AddUTF8Font(fontFamily, "", fontFile)
		p.AddUTF8Font(fontFamily, "B", fontFile)
		doc.family = fontFamily
		doc.tr = func(s string) string { return s }
	}

	p.AddPage()
	p.SetFont(doc.family, "B", 16)
	p.Cell(0, 10, doc.tr(title))
	p.Ln(9)
	p.SetFont(doc.family, "", 12)
	p.Cell(0, 7, doc.tr(subtitle))
	p.Ln(11)
	return doc
}

func (doc *document) pairs(rows [][2]string) {
	p := doc.pdf
	for _, row := range rows {
		p.SetFont(doc.family, "B", 11)
		p.CellFormat(75, 7, doc.tr(row[0]), "", 0, "L", false, 0, "")
		p.SetFont(doc.family, "", 11)
		p.CellFormat(0, 7, doc.tr(row[1]), "", 1, "L", false, 0, "")
	}
}

func (doc *document) table(headers []string, widths []float64, rows [][]string) {
	p := doc.pdf
	p.SetFont(doc.family, "B", 10)
	p.SetFillColor(230, 236, 245)
	for i, h := range headers {
		p.CellFormat(widths[i], 8, doc.tr(h), "1", 0, "C", true, 0, "")
	}
	p.Ln(-1)

	p.SetFont(doc.family, "", 10)
	if len(rows) == 0 {
		total := 0.0
		for _, w := range widths {
			total += w
		}
		p.CellFormat(total, 8, "-", "1", 1, "C", false, 0, "")
		return
	}
	for _, row := range rows {
		for i, cell := range row {
			align := "L"
			if i > 0 && isNumeric(cell) {
				align = "R"
			}
			p.CellFormat(widths[i], 7, doc.tr(fit(p, cell, widths[i])), "1", 0, align, false, 0, "")
		}
		p.Ln(-1)
	}
}

func (doc *document) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fit trims s with an ellipsis until it fits in width (less padding).
func fit(p *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if p.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && p.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
