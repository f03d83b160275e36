package huayuan

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/renhe-cloud/gaswatch/internal/domain"
	"github.com/renhe-cloud/gaswatch/internal/metrics"
)

// providerLabels maps the portal's reading labels to canonical keys.
var providerLabels = map[string]string{
	"表端余额":  domain.ReadingMeterBalance,
	"账户余额":  domain.ReadingAccountBalance,
	"欠费金额":  domain.ReadingArrears,
	"累计用气量": domain.ReadingCumulativeUsage,
	"阀门状态":  domain.ReadingValveStatus,
}

// decimalRegex extracts the first decimal-number substring from value text
// that may carry unit suffixes ("123.45元", "56.7 m³").
var decimalRegex = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)

// parseBalance extracts readings from the balance detail page. Each reading
// is a <li> holding a <span> label and a <b> value.
func parseBalance(r io.Reader, logger *zap.Logger) (map[string]float64, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	values := make(map[string]float64)
	for _, li := range findAll(doc, isElement("li")) {
		span := findFirst(li, isElement("span"))
		b := findFirst(li, isElement("b"))
		if span == nil || b == nil {
			continue
		}

		label := strings.TrimSpace(nodeText(span))
		key, known := providerLabels[label]
		if !known {
			logger.Debug("skipping unknown balance label", zap.String("label", label))
			continue
		}

		raw := strings.TrimSpace(nodeText(b))
		match := decimalRegex.FindString(raw)
		if match == "" {
			logger.Warn("skipping non-numeric balance value",
				zap.String("label", label), zap.String("value", raw))
			metrics.ScrapeSkippedRecordsTotal.WithLabelValues(sourceBalance).Inc()
			continue
		}

		v, err := strconv.ParseFloat(match, 64)
		if err != nil {
			logger.Warn("skipping unparseable balance value",
				zap.String("label", label), zap.String("value", raw), zap.Error(err))
			metrics.ScrapeSkippedRecordsTotal.WithLabelValues(sourceBalance).Inc()
			continue
		}
		values[key] = v
	}

	if len(values) == 0 {
		return nil, domain.ErrParse
	}
	return values, nil
}
