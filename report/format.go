package report

import (
	"fmt"

	"github.com/warp/leave-calendar/calendar"
)

// BuddhistEraOffset converts a Gregorian year to the Thai Buddhist era.
const BuddhistEraOffset = 543

var thaiWeekdays = [7]string{"อา", "จ", "อ", "พ", "พฤ", "ศ", "ส"}

var thaiMonthsShort = [12]string{
	"ม.ค.", "ก.พ.", "มี.ค.", "เม.ย.", "พ.ค.", "มิ.ย.",
	"ก.ค.", "ส.ค.", "ก.ย.", "ต.ค.", "พ.ย.", "ธ.ค.",
}

var thaiMonthsLong = [12]string{
	"มกราคม", "กุมภาพันธ์", "มีนาคม", "เมษายน", "พฤษภาคม", "มิถุนายน",
	"กรกฎาคม", "สิงหาคม", "กันยายน", "ตุลาคม", "พฤศจิกายน", "ธันวาคม",
}

// BuddhistYear returns the Buddhist-era year of d.
func BuddhistYear(d calendar.Date) int { return d.Year() + BuddhistEraOffset }

// Weekday returns the Thai weekday abbreviation of d ("จ" for Monday).
func Weekday(d calendar.Date) string { return thaiWeekdays[d.Weekday()] }

// ShortDate renders "จ 15 ม.ค. 2567".
func ShortDate(d calendar.Date) string {
	return fmt.Sprintf("%s %d %s %d", Weekday(d), d.Day(), thaiMonthsShort[d.Month()-1], BuddhistYear(d))
}

// LongDate renders "15 มกราคม 2567".
func LongDate(d calendar.Date) string {
	return fmt.Sprintf("%d %s %d", d.Day(), thaiMonthsLong[d.Month()-1], BuddhistYear(d))
}

// MonthTitle renders "มกราคม 2567" for report headings.
func MonthTitle(d calendar.Date) string {
	return fmt.Sprintf("%s %d", thaiMonthsLong[d.Month()-1], BuddhistYear(d))
}
