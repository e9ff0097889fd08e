// pkg/backup/schedule/converter.go

// Package schedule turns the cron expression in the backup config into a
// systemd timer schedule.
package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/cronexpr"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var shorthands = map[string]string{
	"@hourly":   "hourly",
	"@daily":    "daily",
	"@midnight": "daily",
	"@weekly":   "weekly",
	"@monthly":  "monthly",
	"@yearly":   "yearly",
	"@annually": "yearly",
}

var weekdays = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// CronToOnCalendar converts a five-field cron expression to systemd
// OnCalendar syntax. Expressions systemd cannot represent are errors rather
// than a silent fallback.
func CronToOnCalendar(ctx context.Context, cron string) (string, error) {
	logger := otelzap.Ctx(ctx)
	cron = strings.TrimSpace(cron)

	// ASSESS - Analyze the cron expression
	logger.Debug("Assessing cron expression for conversion", zap.String("cron", cron))

	if cal, ok := shorthands[cron]; ok {
		return cal, nil
	}
	if _, err := cronexpr.Parse(cron); err != nil {
		return "", cerr.WithHint(cerr.Wrapf(err, "invalid cron expression %q", cron),
			`Use five fields: minute hour day-of-month month day-of-week, e.g. "0 3 * * *"`)
	}
	parts := strings.Fields(cron)
	if len(parts) != 5 {
		return "", cerr.Newf("cron expression %q must have exactly five fields", cron)
	}

	// INTERVENE - Convert to OnCalendar format
	switch cron {
	case "0 0 * * *":
		return "daily", nil
	case "0 0 * * 0":
		// systemd's "weekly" is Monday, so spell Sunday out.
		return "Sun *-*-* 00:00:00", nil
	case "0 0 1 * *":
		return "monthly", nil
	case "0 * * * *":
		return "hourly", nil
	}

	minute, hour, dom, month, dow := parts[0], parts[1], parts[2], parts[3], parts[4]
	if dom != "*" && dow != "*" {
		// cron ORs these two fields, systemd ANDs them.
		return "", cerr.Newf("cron expression %q restricts both day-of-month and day-of-week, which systemd cannot express", cron)
	}

	var err error
	var fields [5]string
	if fields[0], err = convertField(minute, 0, true); err != nil {
		return "", err
	}
	if fields[1], err = convertField(hour, 0, true); err != nil {
		return "", err
	}
	if fields[2], err = convertField(dom, 1, false); err != nil {
		return "", err
	}
	if fields[3], err = convertField(month, 1, false); err != nil {
		return "", err
	}

	onCalendar := fmt.Sprintf("*-%s-%s %s:%s:00", fields[3], fields[2], fields[1], fields[0])
	if dow != "*" {
		days, err := convertWeekdays(dow)
		if err != nil {
			return "", err
		}
		onCalendar = days + " " + onCalendar
	}

	// EVALUATE
	logger.Debug("Converted cron expression",
		zap.String("cron", cron),
		zap.String("on_calendar", onCalendar))
	return onCalendar, nil
}

// NextRun returns the first time after from that cron fires.
func NextRun(cron string, from time.Time) (time.Time, error) {
	expr, err := cronexpr.Parse(strings.TrimSpace(cron))
	if err != nil {
		return time.Time{}, cerr.Wrapf(err, "invalid cron expression %q", cron)
	}
	next := expr.Next(from)
	if next.IsZero() {
		return time.Time{}, cerr.Newf("cron expression %q never fires", cron)
	}
	return next, nil
}

func convertField(f string, stepStart int, pad bool) (string, error) {
	if f == "*" {
		return "*", nil
	}
	if strings.HasPrefix(f, "*/") {
		return fmt.Sprintf("%d/%s", stepStart, f[2:]), nil
	}
	items := strings.Split(f, ",")
	for i, item := range items {
		if strings.Contains(item, "/") {
			return "", cerr.Newf("cron step %q is not supported, use */n", item)
		}
		if lo, hi, ok := strings.Cut(item, "-"); ok {
			items[i] = padNum(lo, pad) + ".." + padNum(hi, pad)
			continue
		}
		items[i] = padNum(item, pad)
	}
	return strings.Join(items, ","), nil
}

func padNum(s string, pad bool) string {
	n, err := strconv.Atoi(s)
	if err != nil || !pad {
		return s
	}
	return fmt.Sprintf("%02d", n)
}

func convertWeekdays(f string) (string, error) {
	name := func(s string) (string, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			// Names such as MON pass through with systemd's capitalisation.
			if len(s) >= 3 {
				return strings.ToUpper(s[:1]) + strings.ToLower(s[1:3]), nil
			}
			return "", cerr.Newf("invalid day of week %q", s)
		}
		if n < 0 || n > 7 {
			return "", cerr.Newf("day of week %d out of range", n)
		}
		return weekdays[n], nil
	}

	items := strings.Split(f, ",")
	for i, item := range items {
		if strings.Contains(item, "/") {
			return "", cerr.Newf("cron step %q is not supported in day-of-week", item)
		}
		if lo, hi, ok := strings.Cut(item, "-"); ok {
			a, err := name(lo)
			if err != nil {
				return "", err
			}
			b, err := name(hi)
			if err != nil {
				return "", err
			}
			items[i] = a + ".." + b
			continue
		}
		d, err := name(item)
		if err != nil {
			return "", err
		}
		items[i] = d
	}
	return strings.Join(items, ","), nil
}
