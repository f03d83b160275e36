package huayuan

import (
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/renhe-cloud/gaswatch/internal/domain"
	"github.com/renhe-cloud/gaswatch/internal/metrics"
)

// parseRecharges sums recharge entries posted on targetDate. The log page
// lists entries as <li> under an element with class "history": the amount in
// <h1><b>, the posted timestamp in <p> ("2024-03-01 09:15:00"). Entries on
// other dates are discarded; malformed entries are skipped with a warning.
func parseRecharges(r io.Reader, targetDate string, logger *zap.Logger) (float64, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return 0, err
	}

	history := findFirst(doc, hasClass("history"))
	if history == nil {
		return 0, domain.ErrParse
	}

	var total float64
	for _, li := range findAll(history, isElement("li")) {
		h1 := findFirst(li, isElement("h1"))
		p := findFirst(li, isElement("p"))
		if h1 == nil || p == nil {
			continue
		}
		b := findFirst(h1, isElement("b"))
		if b == nil {
			continue
		}

		// Posted date is the date half of the "<date> <time>" timestamp.
		date, _, _ := strings.Cut(strings.TrimSpace(nodeText(p)), " ")
		if date != targetDate {
			continue
		}

		raw := strings.TrimSpace(nodeText(b))
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Warn("skipping unparseable recharge record",
				zap.String("amount", raw), zap.String("date", date))
			metrics.ScrapeSkippedRecordsTotal.WithLabelValues(sourceRecharge).Inc()
			continue
		}
		total += amount
	}

	return total, nil
}
