package eastmoney

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alphatrader/alphatrader/internal/domain"
)

// safeFloat coerces upstream values to float64. The API marks missing data
// with "-" or null; those and anything unparseable become 0, never an error.
func safeFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		if val == "-" || val == "" {
			return 0
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		return f
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// secID converts a 6-digit code to the push2 secid form: codes starting with
// "6" are Shanghai (prefix 1), everything else Shenzhen (prefix 0).
func secID(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

// decodeDiff handles both wire shapes of data.diff: a plain array, or an
// object keyed by row index.
func decodeDiff(raw json.RawMessage) ([]map[string]interface{}, error) {
	var asList []map[string]interface{}
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList, nil
	}

	var asMap map[string]map[string]interface{}
	if err := json.Unmarshal(raw, &asMap); err == nil {
		rows := make([]map[string]interface{}, 0, len(asMap))
		for _, row := range asMap {
			rows = append(rows, row)
		}
		return rows, nil
	}

	return nil, fmt.Errorf("unexpected diff shape in catalog response")
}

// parseKlineRow parses one "date,open,close,high,low,volume,amount,..." row.
func parseKlineRow(row string) (domain.KlineBar, bool) {
	parts := strings.Split(row, ",")
	if len(parts) < 7 {
		return domain.KlineBar{}, false
	}
	return domain.KlineBar{
		Date:   parts[0],
		Open:   safeFloat(parts[1]),
		Close:  safeFloat(parts[2]),
		High:   safeFloat(parts[3]),
		Low:    safeFloat(parts[4]),
		Volume: safeFloat(parts[5]),
		Amount: safeFloat(parts[6]),
	}, true
}

func readAll(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
