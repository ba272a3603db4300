package tempest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tempestsync/internal/model"
)

// parseCSV decodes a CSV-format observations response. The first row is the
// header; cells are converted per the column's storage kind, with empty
// cells left out of the field bag (stored as NULL). A row without a usable
// timestamp is dropped, not fatal; dropped reports how many.
func parseCSV(deviceID int64, r io.Reader) (obs []model.Observation, dropped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		// Empty body: the provider has no data for the range.
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	tsIdx, ok := index["timestamp"]
	if !ok {
		return nil, 0, fmt.Errorf("response has no timestamp column")
	}
	devIdx, hasDev := index["device_id"]

	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dropped, fmt.Errorf("failed to read row: %w", err)
		}

		ts, err := cellInt(rec, tsIdx)
		if err != nil || ts == 0 {
			dropped++
			continue
		}

		dev := deviceID
		if hasDev {
			if id, err := cellInt(rec, devIdx); err == nil && id != 0 {
				dev = id
			}
		}

		fields := make(map[string]any, len(index))
		for name, i := range index {
			if name == "device_id" || name == "timestamp" {
				continue
			}
			if i >= len(rec) {
				continue
			}
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				continue
			}

			switch model.KindOf(name) {
			case model.KindText:
				fields[name] = cell
			case model.KindInteger:
				if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
					fields[name] = n
				}
			default:
				if f, err := strconv.ParseFloat(cell, 64); err == nil {
					fields[name] = f
				}
			}
		}

		obs = append(obs, model.Observation{DeviceID: dev, Timestamp: ts, Fields: fields})
	}

	return obs, dropped, nil
}

func cellInt(rec []string, i int) (int64, error) {
	if i >= len(rec) {
		return 0, fmt.Errorf("missing cell %d", i)
	}
	return strconv.ParseInt(strings.TrimSpace(rec[i]), 10, 64)
}
