package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"

	"github.com/rustyeddy/papertrader/market"
)

// LoadCSV reads a candle dataset: time,open,high,low,close,volume rows,
// header optional, timestamps RFC3339 or unix seconds. Files ending in
// .xz are decompressed transparently.
func LoadCSV(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("xz reader %s: %w", path, err)
		}
		r = xr
	}

	return ReadCandles(r)
}

// ReadCandles parses candle CSV rows from r.
func ReadCandles(r io.Reader) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	var candles []market.Candle
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(rec[0], "time") {
			continue
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("line %d: want 6 fields, got %d", line, len(rec))
		}

		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var vals [5]float64
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}

		candles = append(candles, market.Candle{
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	return candles, nil
}

// ExtractDataset unpacks a zipped bundle of candle CSVs into destDir so
// the individual files can be loaded with LoadCSV.
func ExtractDataset(zipPath, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	if err := unzip.Extract(zipPath, destDir); err != nil {
		return fmt.Errorf("extract %s: %w", zipPath, err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
