package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mqtt-monitor/backend/internal/telemetry/domain"
)

// WriteCSV writes s as CSV: a header [Time, Host, Topic, <Field title-cased>] and one row per point.
// Missing values are empty cells. Rows end in CRLF.
func WriteCSV(w io.Writer, s *domain.Series) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.Write([]string{"Time", "Host", "Topic", TitleField(s.Field)}); err != nil {
		return err
	}
	for _, p := range s.Points {
		if err := cw.Write([]string{FormatTimestamp(p.Time), s.Host, s.Topic, formatValue(p.Value)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatTimestamp formats t in UTC as ISO 8601 with a +00:00 offset. Microseconds are included only when non-zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	s := t.Format("2006-01-02T15:04:05")
	if us := t.Nanosecond() / int(time.Microsecond); us != 0 {
		s += fmt.Sprintf(".%06d", us)
	}
	return s + "+00:00"
}

// TitleField capitalises the first letter of every run of letters in field and lower-cases the rest.
// Any non-letter starts a new word: "flow_rate" -> "Flow_Rate", "co2ppm" -> "Co2Ppm".
func TitleField(field string) string {
	caser := cases.Title(language.Und)
	var b strings.Builder
	start := -1
	for i, r := range field {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(caser.String(field[start:i]))
			start = -1
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		b.WriteString(caser.String(field[start:]))
	}
	return b.String()
}

// Filename returns the download name "<host>_<topic with / replaced by _>_<field>.csv".
func Filename(host, topic, field string) string {
	return host + "_" + strings.ReplaceAll(topic, "/", "_") + "_" + field + ".csv"
}

// ContentDisposition returns the attachment header value for filename. Quotes, backslashes and
// control characters cannot break out of the quoted string.
func ContentDisposition(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return `attachment; filename="` + b.String() + `"`
}

func formatValue(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
